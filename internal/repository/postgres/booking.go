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

type BookingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewBookingRepository(db *pgxpool.Pool, logger *zap.Logger) repository.BookingRepository {
	return &BookingRepository{
		db:     db,
		logger: logger.With(zap.String("component", "booking_repository")),
	}
}

func (br *BookingRepository) GetByID(ctx context.Context, bookingID string) (*entity.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT id, listing_id, customer_id, lender_id, rental_days, delivery, insurance, payment_status, created_at
	FROM bookings WHERE id = $1`

	var b entity.Booking
	err := br.db.QueryRow(ctx, query, bookingID).Scan(
		&b.ID, &b.ListingID, &b.CustomerID, &b.LenderID,
		&b.RentalDays, &b.Delivery, &b.Insurance, &b.PaymentStatus, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", bookingID, apperr.ErrNotFound)
		}
		br.logger.Error("failed to fetch booking",
			zap.String("booking_id", bookingID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch booking %s: %w", bookingID, err)
	}
	return &b, nil
}

func (br *BookingRepository) SetPaymentStatus(ctx context.Context, bookingID string, status entity.BookingPaymentStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE bookings SET payment_status = $2 WHERE id = $1`
	if _, err := br.db.Exec(ctx, query, bookingID, status); err != nil {
		br.logger.Error("failed to set booking payment status",
			zap.String("booking_id", bookingID),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to set booking payment status: %w", err)
	}
	return nil
}
