package domain

import "time"

// SubscriptionWindow is how long a subscription stays active after activation.
const SubscriptionWindow = 33 * 24 * time.Hour

// Subscription is the ledger record for one owner id.
type Subscription struct {
	OwnerID     string
	ActivatedAt time.Time
}

// Expired reports whether more than SubscriptionWindow has elapsed at now.
// Exactly SubscriptionWindow is still active.
func (s Subscription) Expired(now time.Time) bool {
	return now.Sub(s.ActivatedAt) > SubscriptionWindow
}

// SubscriptionStatus is the result of a status lookup.
type SubscriptionStatus struct {
	Active bool
	// Expired is set when a record existed but had lapsed and was removed.
	Expired bool
}
