package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"handbook-chat/internal/domain"
)

// Clock abstracts the time source so tests can move time forward.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SubscriptionStore is the in-memory subscription ledger. Every read or write
// of a key happens under one mutex, so an expiry check and its delete are a
// single step.
type SubscriptionStore struct {
	clock Clock

	mu      sync.Mutex
	records map[string]domain.Subscription
}

// NewSubscriptionStore creates an empty ledger. A nil clock uses wall time.
func NewSubscriptionStore(clock Clock) *SubscriptionStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &SubscriptionStore{
		clock:   clock,
		records: make(map[string]domain.Subscription),
	}
}

// Subscribe activates ownerID from now, overwriting any earlier record.
func (s *SubscriptionStore) Subscribe(ownerID string) domain.Subscription {
	sub := domain.Subscription{OwnerID: ownerID, ActivatedAt: s.clock.Now()}

	s.mu.Lock()
	s.records[ownerID] = sub
	s.mu.Unlock()
	return sub
}

// Status reports whether ownerID is active. A lapsed record is removed before
// returning.
func (s *SubscriptionStore) Status(ownerID string) domain.SubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.records[ownerID]
	if !ok {
		return domain.SubscriptionStatus{}
	}
	if sub.Expired(s.clock.Now()) {
		delete(s.records, ownerID)
		return domain.SubscriptionStatus{Expired: true}
	}
	return domain.SubscriptionStatus{Active: true}
}

// Lookup returns the raw record without applying expiry.
func (s *SubscriptionStore) Lookup(ownerID string) (domain.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.records[ownerID]
	return sub, ok
}

// Len returns the number of stored records, lapsed ones included.
func (s *SubscriptionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep removes every lapsed record and returns how many were dropped.
func (s *SubscriptionStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sub := range s.records {
		if sub.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done. It returns
// immediately when interval is not positive.
func (s *SubscriptionStore) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("expired subscriptions swept", "removed", n)
			}
		}
	}
}
