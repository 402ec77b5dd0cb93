package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentpay/internal/apperr"
	"rentpay/internal/config"
	"rentpay/internal/entity"
	"rentpay/internal/processor"
	"rentpay/internal/repository"
	"rentpay/internal/usecase"
)

// DisputeService runs admin-triggered off-session charges against a
// customer's saved payment method and records the outcome in the ledger and
// the dispute timeline.
type DisputeService struct {
	payments repository.PaymentRepository
	bookings repository.BookingRepository
	users    repository.UserRepository
	disputes repository.DisputeRepository
	proc     processor.Client
	notifier usecase.Notifier
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewDisputeService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	users repository.UserRepository,
	disputes repository.DisputeRepository,
	proc processor.Client,
	notifier usecase.Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *DisputeService {
	return &DisputeService{
		payments: payments,
		bookings: bookings,
		users:    users,
		disputes: disputes,
		proc:     proc,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "dispute_service")),
		now:      time.Now,
	}
}

// ChargeUserOffSession charges the disputed booking's customer without
// cardholder interaction. There is no interactive fallback: a missing saved
// payment method or an authentication demand fails the attempt synchronously
// and nothing is retried.
func (s *DisputeService) ChargeUserOffSession(ctx context.Context, disputeID string, amount float64, reason string) (*usecase.DisputeChargeResult, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, fmt.Errorf("load dispute: %w", err)
	}
	booking, err := s.bookings.GetByID(ctx, dispute.BookingID)
	if err != nil {
		return nil, fmt.Errorf("load disputed booking: %w", err)
	}
	user, err := s.users.GetByID(ctx, booking.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	if user.StripeCustomerID == "" {
		return nil, fmt.Errorf("user %s has no processor customer: %w", user.ID, apperr.ErrNoSavedPaymentMethod)
	}
	methods, err := s.proc.ListPaymentMethods(ctx, user.StripeCustomerID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("user %s has no saved payment method: %w", user.ID, apperr.ErrNoSavedPaymentMethod)
	}

	// Deterministic: first method in the processor's listing order.
	method := methods[0]

	result, chargeErr := s.proc.ChargeOffSession(ctx, processor.OffSessionCharge{
		CustomerID:      user.StripeCustomerID,
		PaymentMethodID: method.ID,
		Amount:          amount,
		Currency:        s.cfg.App.Currency,
		Description:     reason,
		Metadata: map[string]string{
			"disputeId": dispute.ID,
			"bookingId": booking.ID,
		},
	})

	payment := &entity.Payment{
		ID:         uuid.New().String(),
		Type:       entity.TypeDispute,
		BookingID:  booking.ID,
		CustomerID: user.ID,
		LenderID:   booking.LenderID,
		Amount:     amount,
		Currency:   s.cfg.App.Currency,
		Status:     entity.StatusFailed,
	}
	if result != nil {
		payment.PaymentIntentID = result.PaymentIntentID
	}
	if chargeErr == nil && result != nil && result.Succeeded {
		payment.Status = entity.StatusPaid
	}

	// The ledger mirrors the processor outcome whenever an intent was
	// actually attempted, success or not.
	if chargeErr == nil || payment.PaymentIntentID != "" {
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, fmt.Errorf("record dispute payment: %w", err)
		}
	}
	if chargeErr != nil {
		s.logger.Error("off-session charge failed",
			zap.String("dispute_id", disputeID),
			zap.String("user_id", user.ID),
			zap.Error(chargeErr))
		return nil, chargeErr
	}

	if err := s.disputes.AppendTimeline(ctx, dispute.ID, entity.TimelineEntry{
		Actor:   "admin",
		Role:    "admin",
		Message: reason,
		Type:    "charge",
		At:      s.now(),
	}); err != nil {
		return nil, fmt.Errorf("append dispute timeline: %w", err)
	}

	if err := s.notifier.Notify(ctx, user.ID, "Dispute charge",
		fmt.Sprintf("You were charged %.2f for dispute %s: %s", amount, dispute.ID, reason)); err != nil {
		s.logger.Warn("dispute charge notification failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	s.logger.Info("dispute charge completed",
		zap.String("dispute_id", disputeID),
		zap.String("payment_id", payment.ID),
		zap.String("payment_intent_id", payment.PaymentIntentID))
	return &usecase.DisputeChargeResult{
		DisputeID:       dispute.ID,
		UserID:          user.ID,
		Amount:          amount,
		Reason:          reason,
		PaymentIntentID: payment.PaymentIntentID,
	}, nil
}
