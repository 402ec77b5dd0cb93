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

type PlanRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPlanRepository(db *pgxpool.Pool, logger *zap.Logger) repository.PlanRepository {
	return &PlanRepository{
		db:     db,
		logger: logger.With(zap.String("component", "plan_repository")),
	}
}

func (r *PlanRepository) GetByID(ctx context.Context, planID string) (*entity.SubscriptionPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT id, name, price, currency, billing_cycle, is_active
	FROM subscription_plans WHERE id = $1`

	var p entity.SubscriptionPlan
	err := r.db.QueryRow(ctx, query, planID).Scan(
		&p.ID, &p.Name, &p.Price, &p.Currency, &p.BillingCycle, &p.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", planID, apperr.ErrNotFound)
		}
		r.logger.Error("failed to fetch plan", zap.String("plan_id", planID), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch plan %s: %w", planID, err)
	}
	return &p, nil
}
