package usecase

import (
	"context"
	"errors"
	"log/slog"

	"handbook-chat/internal/domain"
)

// SubscriptionLedger is the storage contract behind SubscriptionService.
type SubscriptionLedger interface {
	Subscribe(ownerID string) domain.Subscription
	Status(ownerID string) domain.SubscriptionStatus
}

type SubscriptionService struct {
	ledger SubscriptionLedger
	logger *slog.Logger
}

func NewSubscriptionService(ledger SubscriptionLedger, logger *slog.Logger) (*SubscriptionService, error) {
	if ledger == nil {
		return nil, errors.New("usecase: subscription ledger must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{ledger: ledger, logger: logger}, nil
}

// Subscribe (re)starts the subscription window for ownerID.
func (s *SubscriptionService) Subscribe(ctx context.Context, ownerID string) (domain.Subscription, error) {
	if ownerID == "" {
		return domain.Subscription{}, newError(ErrorInvalidInput, "missing_user_id", nil)
	}
	sub := s.ledger.Subscribe(ownerID)
	s.logger.InfoContext(ctx, "user subscribed",
		"user_id", ownerID,
		"valid_days", int(domain.SubscriptionWindow.Hours()/24),
	)
	return sub, nil
}

// Status reports whether ownerID holds an active subscription. An unknown id
// is inactive, not an error.
func (s *SubscriptionService) Status(ctx context.Context, ownerID string) (domain.SubscriptionStatus, error) {
	if ownerID == "" {
		return domain.SubscriptionStatus{}, newError(ErrorInvalidInput, "missing_user_id", nil)
	}
	status := s.ledger.Status(ownerID)
	if status.Expired {
		s.logger.InfoContext(ctx, "subscription expired and removed", "user_id", ownerID)
	}
	s.logger.InfoContext(ctx, "subscription status checked", "user_id", ownerID, "active", status.Active)
	return status, nil
}
