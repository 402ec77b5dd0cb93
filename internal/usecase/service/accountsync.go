package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rentpay/internal/apperr"
	"rentpay/internal/entity"
	"rentpay/internal/processor"
	"rentpay/internal/repository"
)

// AccountSyncService reconciles connected-account onboarding state. Webhook
// payload fields are treated as untrustworthy: the handler always re-fetches
// the authoritative snapshot and overwrites local flags from it, which makes
// repeated delivery converge to the same state.
type AccountSyncService struct {
	users  repository.UserRepository
	proc   processor.Client
	logger *zap.Logger
}

func NewAccountSyncService(users repository.UserRepository, proc processor.Client, logger *zap.Logger) *AccountSyncService {
	return &AccountSyncService{
		users:  users,
		proc:   proc,
		logger: logger.With(zap.String("component", "account_sync_service")),
	}
}

func (s *AccountSyncService) SyncAccount(ctx context.Context, accountID string) error {
	snapshot, err := s.proc.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("fetch account snapshot: %w", err)
	}

	user, err := s.users.GetByStripeAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// The account may not be linked yet, or the user was deleted.
			s.logger.Info("no local user for connected account, skipping",
				zap.String("account_id", accountID))
			return nil
		}
		return fmt.Errorf("locate user by connected account: %w", err)
	}

	flags := entity.OnboardingFlags{
		DetailsSubmitted:    snapshot.DetailsSubmitted,
		ChargesEnabled:      snapshot.ChargesEnabled,
		PayoutsEnabled:      snapshot.PayoutsEnabled,
		OnboardingCompleted: snapshot.ChargesEnabled && snapshot.PayoutsEnabled,
	}
	if err := s.users.SetOnboarding(ctx, user.ID, flags); err != nil {
		return fmt.Errorf("persist onboarding flags: %w", err)
	}

	s.logger.Info("connected account synced",
		zap.String("account_id", accountID),
		zap.String("user_id", user.ID),
		zap.Bool("onboarding_completed", flags.OnboardingCompleted))
	return nil
}
