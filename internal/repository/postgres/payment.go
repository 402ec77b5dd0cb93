package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"rentpay/internal/apperr"
	"rentpay/internal/entity"
	"rentpay/internal/repository"
)

const paymentColumns = `id, type, booking_id, plan_id, customer_id, lender_id, listing_id,
	amount, currency, status, checkout_session_id, payment_intent_id, idempotency_key,
	refunds, created_at, updated_at`

type PaymentRepository struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.Logger
}

func NewPaymentRepository(db *pgxpool.Pool, redis *redis.Client, logger *zap.Logger) repository.PaymentRepository {
	return &PaymentRepository{
		db:     db,
		redis:  redis,
		logger: logger.With(zap.String("component", "payment_repository")),
	}
}

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	var refunds []byte
	err := row.Scan(
		&p.ID, &p.Type, &p.BookingID, &p.PlanID, &p.CustomerID, &p.LenderID, &p.ListingID,
		&p.Amount, &p.Currency, &p.Status, &p.CheckoutSessionID, &p.PaymentIntentID, &p.IdempotencyKey,
		&refunds, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(refunds) > 0 {
		if err := json.Unmarshal(refunds, &p.Refunds); err != nil {
			return nil, fmt.Errorf("decode refund history: %w", err)
		}
	}
	return &p, nil
}

func (pr *PaymentRepository) cacheKey(paymentID string) string {
	return fmt.Sprintf("payment:%s", paymentID)
}

func (pr *PaymentRepository) invalidate(ctx context.Context, paymentID string) {
	if err := pr.redis.Del(ctx, pr.cacheKey(paymentID)).Err(); err != nil {
		pr.logger.Warn("failed to invalidate payment cache",
			zap.String("payment_id", paymentID),
			zap.Error(err))
	}
}

func (pr *PaymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid ledger write: %w", err)
	}

	refunds, err := json.Marshal(p.Refunds)
	if err != nil {
		return fmt.Errorf("encode refund history: %w", err)
	}
	if p.Refunds == nil {
		refunds = []byte("[]")
	}

	query := `INSERT INTO payments
	(id, type, booking_id, plan_id, customer_id, lender_id, listing_id,
	 amount, currency, status, checkout_session_id, payment_intent_id, idempotency_key,
	 refunds, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())`

	_, err = pr.db.Exec(ctx, query,
		p.ID, p.Type, p.BookingID, p.PlanID, p.CustomerID, p.LenderID, p.ListingID,
		p.Amount, p.Currency, p.Status, p.CheckoutSessionID, p.PaymentIntentID, p.IdempotencyKey,
		refunds,
	)
	if err != nil {
		pr.logger.Error("failed to create payment",
			zap.String("payment_id", p.ID),
			zap.String("type", string(p.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (pr *PaymentRepository) GetByID(ctx context.Context, paymentID string) (*entity.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// Try cache first
	if cached, err := pr.redis.Get(ctx, pr.cacheKey(paymentID)).Result(); err == nil {
		var payment entity.Payment
		if err := json.Unmarshal([]byte(cached), &payment); err == nil {
			return &payment, nil
		}
		pr.logger.Warn("failed to unmarshal cached payment", zap.Error(err))
	}

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	payment, err := scanPayment(pr.db.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", paymentID, apperr.ErrNotFound)
		}
		pr.logger.Error("failed to fetch payment by ID",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	if data, err := json.Marshal(payment); err == nil {
		if err := pr.redis.Set(ctx, pr.cacheKey(paymentID), data, 10*time.Minute).Err(); err != nil {
			pr.logger.Warn("failed to cache payment",
				zap.String("payment_id", paymentID),
				zap.Error(err))
		}
	}

	return payment, nil
}

func (pr *PaymentRepository) GetByPaymentIntent(ctx context.Context, intentID string) (*entity.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE payment_intent_id = $1`, paymentColumns)
	payment, err := scanPayment(pr.db.QueryRow(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment for intent %s: %w", intentID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch payment by intent %s: %w", intentID, err)
	}
	return payment, nil
}

// FindOrCreatePendingBookingPayment relies on the partial unique index on
// (booking_id) WHERE status = 'PENDING' AND type = 'booking': the insert and
// the duplicate check are one atomic statement, so concurrent checkout calls
// for the same booking cannot produce two Pending rows.
func (pr *PaymentRepository) FindOrCreatePendingBookingPayment(ctx context.Context, p *entity.Payment) (*entity.Payment, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid ledger write: %w", err)
	}

	insert := `INSERT INTO payments
	(id, type, booking_id, plan_id, customer_id, lender_id, listing_id,
	 amount, currency, status, checkout_session_id, payment_intent_id, idempotency_key,
	 refunds, created_at, updated_at)
	VALUES ($1, 'booking', $2, '', $3, $4, $5, $6, $7, 'PENDING', '', '', $1, '[]', NOW(), NOW())
	ON CONFLICT (booking_id) WHERE status = 'PENDING' AND type = 'booking' DO NOTHING
	RETURNING id`

	var insertedID string
	err := pr.db.QueryRow(ctx, insert,
		p.ID, p.BookingID, p.CustomerID, p.LenderID, p.ListingID, p.Amount, p.Currency,
	).Scan(&insertedID)
	if err == nil {
		created, err := pr.GetByID(ctx, insertedID)
		return created, true, err
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		pr.logger.Error("failed to upsert pending booking payment",
			zap.String("booking_id", p.BookingID),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to upsert pending payment: %w", err)
	}

	// Conflict: another call owns the Pending row; reuse it.
	query := fmt.Sprintf(`SELECT %s FROM payments
	WHERE booking_id = $1 AND status = 'PENDING' AND type = 'booking'`, paymentColumns)
	existing, err := scanPayment(pr.db.QueryRow(ctx, query, p.BookingID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch pending payment for booking %s: %w", p.BookingID, err)
	}
	return existing, false, nil
}

func (pr *PaymentRepository) AttachCheckoutSession(ctx context.Context, paymentID, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE payments SET checkout_session_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := pr.db.Exec(ctx, query, paymentID, sessionID); err != nil {
		pr.logger.Error("failed to attach checkout session",
			zap.String("payment_id", paymentID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return fmt.Errorf("failed to attach checkout session: %w", err)
	}
	pr.invalidate(ctx, paymentID)
	return nil
}

func (pr *PaymentRepository) MarkPaid(ctx context.Context, paymentID, paymentIntentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE payments
	SET status = 'PAID',
	    payment_intent_id = CASE WHEN $2 = '' THEN payment_intent_id ELSE $2 END,
	    updated_at = NOW()
	WHERE id = $1 AND status = 'PENDING'`

	tag, err := pr.db.Exec(ctx, query, paymentID, paymentIntentID)
	if err != nil {
		pr.logger.Error("failed to mark payment paid",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	pr.invalidate(ctx, paymentID)
	return tag.RowsAffected() == 1, nil
}

func (pr *PaymentRepository) MarkFailed(ctx context.Context, paymentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `UPDATE payments SET status = 'FAILED', updated_at = NOW()
	WHERE id = $1 AND status = 'PENDING'`

	tag, err := pr.db.Exec(ctx, query, paymentID)
	if err != nil {
		pr.logger.Error("failed to mark payment failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	pr.invalidate(ctx, paymentID)
	return tag.RowsAffected() == 1, nil
}

func (pr *PaymentRepository) AppendRefund(ctx context.Context, paymentID string, entry entity.RefundEntry, status entity.PaymentStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode refund entry: %w", err)
	}

	query := `UPDATE payments
	SET refunds = refunds || $2::jsonb, status = $3, updated_at = NOW()
	WHERE id = $1`

	if _, err := pr.db.Exec(ctx, query, paymentID, data, status); err != nil {
		pr.logger.Error("failed to append refund",
			zap.String("payment_id", paymentID),
			zap.String("refund_id", entry.RefundID),
			zap.Error(err))
		return fmt.Errorf("failed to append refund: %w", err)
	}
	pr.invalidate(ctx, paymentID)
	return nil
}
