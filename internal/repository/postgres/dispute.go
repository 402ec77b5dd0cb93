package postgres

import (
	"context"
	"encoding/json"
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

type DisputeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDisputeRepository(db *pgxpool.Pool, logger *zap.Logger) repository.DisputeRepository {
	return &DisputeRepository{
		db:     db,
		logger: logger.With(zap.String("component", "dispute_repository")),
	}
}

func (r *DisputeRepository) GetByID(ctx context.Context, disputeID string) (*entity.Dispute, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT id, booking_id, status, timeline, created_at FROM disputes WHERE id = $1`

	var d entity.Dispute
	var timeline []byte
	err := r.db.QueryRow(ctx, query, disputeID).Scan(&d.ID, &d.BookingID, &d.Status, &timeline, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dispute %s: %w", disputeID, apperr.ErrNotFound)
		}
		r.logger.Error("failed to fetch dispute", zap.String("dispute_id", disputeID), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch dispute %s: %w", disputeID, err)
	}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &d.Timeline); err != nil {
			return nil, fmt.Errorf("decode dispute timeline: %w", err)
		}
	}
	return &d, nil
}

// AppendTimeline adds one entry to the dispute's append-only timeline.
func (r *DisputeRepository) AppendTimeline(ctx context.Context, disputeID string, entry entity.TimelineEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode timeline entry: %w", err)
	}

	query := `UPDATE disputes SET timeline = timeline || $2::jsonb WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, disputeID, data); err != nil {
		r.logger.Error("failed to append dispute timeline entry",
			zap.String("dispute_id", disputeID),
			zap.Error(err))
		return fmt.Errorf("failed to append timeline entry: %w", err)
	}
	return nil
}
