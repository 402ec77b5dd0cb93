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

type ListingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewListingRepository(db *pgxpool.Pool, logger *zap.Logger) repository.ListingRepository {
	return &ListingRepository{
		db:     db,
		logger: logger.With(zap.String("component", "listing_repository")),
	}
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT id, lender_id, price_4_day, price_8_day FROM listings WHERE id = $1`

	var l entity.Listing
	err := r.db.QueryRow(ctx, query, listingID).Scan(&l.ID, &l.LenderID, &l.Price4Day, &l.Price8Day)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("listing %s: %w", listingID, apperr.ErrNotFound)
		}
		r.logger.Error("failed to fetch listing", zap.String("listing_id", listingID), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch listing %s: %w", listingID, err)
	}
	return &l, nil
}
