package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"handbook-chat/internal/domain"
)

type fakeLedger struct {
	subscribed []string
	checked    []string
	status     domain.SubscriptionStatus
}

func (f *fakeLedger) Subscribe(ownerID string) domain.Subscription {
	f.subscribed = append(f.subscribed, ownerID)
	return domain.Subscription{OwnerID: ownerID, ActivatedAt: time.Unix(0, 0)}
}

func (f *fakeLedger) Status(ownerID string) domain.SubscriptionStatus {
	f.checked = append(f.checked, ownerID)
	return f.status
}

func TestNewSubscriptionService_NilLedger(t *testing.T) {
	_, err := NewSubscriptionService(nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestSubscribe_RejectsMissingID(t *testing.T) {
	ledger := &fakeLedger{}
	svc, err := NewSubscriptionService(ledger, nil)
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), "")
	expectGenerateError(t, err, ErrorInvalidInput, "missing_user_id")
	require.Empty(t, ledger.subscribed)
}

func TestSubscribe_WritesLedger(t *testing.T) {
	ledger := &fakeLedger{}
	svc, err := NewSubscriptionService(ledger, nil)
	require.NoError(t, err)

	sub, err := svc.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", sub.OwnerID)
	require.Equal(t, []string{"u1"}, ledger.subscribed)
}

func TestStatus_PassesThroughLedger(t *testing.T) {
	cases := []struct {
		name   string
		status domain.SubscriptionStatus
	}{
		{name: "active", status: domain.SubscriptionStatus{Active: true}},
		{name: "unknown", status: domain.SubscriptionStatus{}},
		{name: "expired", status: domain.SubscriptionStatus{Expired: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &fakeLedger{status: tc.status}
			svc, err := NewSubscriptionService(ledger, nil)
			require.NoError(t, err)

			got, err := svc.Status(context.Background(), "u1")
			require.NoError(t, err)
			require.Equal(t, tc.status, got)
			require.Equal(t, []string{"u1"}, ledger.checked)
		})
	}
}

func TestStatus_RejectsMissingID(t *testing.T) {
	ledger := &fakeLedger{}
	svc, err := NewSubscriptionService(ledger, nil)
	require.NoError(t, err)

	_, err = svc.Status(context.Background(), "")
	expectGenerateError(t, err, ErrorInvalidInput, "missing_user_id")
	require.Empty(t, ledger.checked)
}
