package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rentpay/internal/apperr"
	"rentpay/internal/entity"
	"rentpay/internal/repository"
)

const userColumns = `id, email, role, stripe_customer_id, stripe_account_id,
	details_submitted, charges_enabled, payouts_enabled, onboarding_completed,
	subscription_active, subscription_plan_id, subscription_starts_at, subscription_expires_at`

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) repository.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger.With(zap.String("component", "user_repository")),
	}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Role, &u.StripeCustomerID, &u.StripeAccountID,
		&u.DetailsSubmitted, &u.ChargesEnabled, &u.PayoutsEnabled, &u.OnboardingCompleted,
		&u.SubscriptionActive, &u.SubscriptionPlanID, &u.SubscriptionStartsAt, &u.SubscriptionExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (ur *UserRepository) GetByID(ctx context.Context, userID string) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	u, err := scanUser(ur.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
		}
		ur.logger.Error("failed to fetch user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	return u, nil
}

func (ur *UserRepository) GetByStripeAccount(ctx context.Context, accountID string) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM users WHERE stripe_account_id = $1`, userColumns)
	u, err := scanUser(ur.db.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user for account %s: %w", accountID, apperr.ErrNotFound)
		}
		ur.logger.Error("failed to fetch user by account",
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch user for account %s: %w", accountID, err)
	}
	return u, nil
}

func (ur *UserRepository) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE users SET stripe_customer_id = $2 WHERE id = $1`
	if _, err := ur.db.Exec(ctx, query, userID, customerID); err != nil {
		ur.logger.Error("failed to set stripe customer",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	return nil
}

func (ur *UserRepository) SetOnboarding(ctx context.Context, userID string, flags entity.OnboardingFlags) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE users
	SET details_submitted = $2, charges_enabled = $3, payouts_enabled = $4, onboarding_completed = $5
	WHERE id = $1`

	if _, err := ur.db.Exec(ctx, query, userID,
		flags.DetailsSubmitted, flags.ChargesEnabled, flags.PayoutsEnabled, flags.OnboardingCompleted,
	); err != nil {
		ur.logger.Error("failed to set onboarding flags",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to set onboarding flags: %w", err)
	}
	return nil
}

func (ur *UserRepository) SetEntitlement(ctx context.Context, userID, planID string, startsAt, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE users
	SET subscription_active = TRUE, subscription_plan_id = $2,
	    subscription_starts_at = $3, subscription_expires_at = $4
	WHERE id = $1`

	if _, err := ur.db.Exec(ctx, query, userID, planID, startsAt, expiresAt); err != nil {
		ur.logger.Error("failed to set entitlement",
			zap.String("user_id", userID),
			zap.String("plan_id", planID),
			zap.Error(err))
		return fmt.Errorf("failed to set entitlement: %w", err)
	}
	return nil
}
