package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rentpay/internal/apperr"
	"rentpay/internal/entity"
	"rentpay/internal/repository"
	"rentpay/internal/usecase"
)

// SettlementService applies webhook outcomes to the ledger. Delivery is
// at-least-once, so every method re-checks current state before mutating; a
// replay converges to the same final state as a single delivery.
type SettlementService struct {
	payments repository.PaymentRepository
	bookings repository.BookingRepository
	users    repository.UserRepository
	plans    repository.PlanRepository
	notifier usecase.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewSettlementService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	notifier usecase.Notifier,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		payments: payments,
		bookings: bookings,
		users:    users,
		plans:    plans,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "settlement_service")),
		now:      time.Now,
	}
}

// SettleBookingPayment marks the payment Paid and flips the booking's
// payment status. The conditional Pending->Paid transition dedups the
// payment write only; the booking write is re-checked on every delivery, so
// a redelivery after a mid-handler failure still converges it.
func (s *SettlementService) SettleBookingPayment(ctx context.Context, paymentID, paymentIntentID string) error {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}

	transitioned, err := s.payments.MarkPaid(ctx, payment.ID, paymentIntentID)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	if !transitioned && payment.Status != entity.StatusPaid {
		// Failed or refunded: this delivery has nothing left to apply.
		s.logger.Info("payment in terminal state, skipping settlement",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(payment.Status)))
		return nil
	}

	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}
	if booking.PaymentStatus == entity.BookingUnpaid {
		if err := s.bookings.SetPaymentStatus(ctx, payment.BookingID, entity.BookingPaid); err != nil {
			return fmt.Errorf("set booking paid: %w", err)
		}
	}

	s.logger.Info("booking payment settled",
		zap.String("payment_id", payment.ID),
		zap.String("booking_id", payment.BookingID))
	return nil
}

// ActivateSubscription grants the entitlement bought through a checkout
// session. A replay that finds the payment Paid but the entitlement missing
// re-applies the grant: losing the Pending->Paid race is not proof the
// dependent write landed.
func (s *SettlementService) ActivateSubscription(ctx context.Context, paymentID, planID, userID, paymentIntentID string) error {
	transitioned, err := s.payments.MarkPaid(ctx, paymentID, paymentIntentID)
	if err != nil {
		return fmt.Errorf("mark subscription payment paid: %w", err)
	}
	if !transitioned {
		payment, err := s.payments.GetByID(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment.Status != entity.StatusPaid {
			s.logger.Info("subscription payment in terminal state, skipping activation",
				zap.String("payment_id", paymentID),
				zap.String("status", string(payment.Status)))
			return nil
		}
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user.SubscriptionActive && user.SubscriptionPlanID == planID {
			s.logger.Info("subscription already activated, acknowledging",
				zap.String("payment_id", paymentID),
				zap.String("user_id", userID))
			return nil
		}
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	start := s.now()
	expiry := start.Add(plan.BillingCycle.Duration())
	if err := s.users.SetEntitlement(ctx, userID, plan.ID, start, expiry); err != nil {
		return fmt.Errorf("set entitlement: %w", err)
	}

	if err := s.notifier.Notify(ctx, userID, "Subscription active",
		fmt.Sprintf("Your %s plan is now active until %s.", plan.Name, expiry.Format(time.RFC1123))); err != nil {
		s.logger.Warn("subscription notification failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	s.logger.Info("subscription activated",
		zap.String("payment_id", paymentID),
		zap.String("plan_id", planID),
		zap.String("user_id", userID),
		zap.Time("expires_at", expiry))
	return nil
}

func (s *SettlementService) FailPayment(ctx context.Context, paymentID string) error {
	transitioned, err := s.payments.MarkFailed(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if !transitioned {
		s.logger.Info("payment not pending, skipping failure mark",
			zap.String("payment_id", paymentID))
	}
	return nil
}

// FailPaymentByIntent handles intent-level failure events, which carry no
// local payment metadata. An intent this ledger never saw is ignored.
func (s *SettlementService) FailPaymentByIntent(ctx context.Context, intentID string) error {
	payment, err := s.payments.GetByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Info("intent failure for unknown payment, ignoring",
				zap.String("payment_intent_id", intentID))
			return nil
		}
		return fmt.Errorf("load payment by intent: %w", err)
	}
	return s.FailPayment(ctx, payment.ID)
}

// RecordRefund appends to the payment's refund history. The refund id makes
// the append idempotent; the status flips to Refunded only when the history
// covers the full paid amount.
func (s *SettlementService) RecordRefund(ctx context.Context, intentID, refundID string, amount float64) error {
	payment, err := s.payments.GetByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("refund for unknown payment intent, ignoring",
				zap.String("payment_intent_id", intentID),
				zap.String("refund_id", refundID))
			return nil
		}
		return fmt.Errorf("load payment by intent: %w", err)
	}
	// The refund id dedups the append only; the booking write below is
	// re-checked even on a replay, so it converges after a partial failure.
	recorded := payment.HasRefund(refundID)
	refundedTotal := payment.RefundedTotal()
	if !recorded {
		refundedTotal += amount
	}
	fullyRefunded := refundedTotal >= payment.Amount

	if recorded {
		s.logger.Info("refund already recorded, skipping append",
			zap.String("payment_id", payment.ID),
			zap.String("refund_id", refundID))
	} else {
		status := payment.Status
		if fullyRefunded {
			status = entity.StatusRefunded
		}
		entry := entity.RefundEntry{RefundID: refundID, Amount: amount, At: s.now()}
		if err := s.payments.AppendRefund(ctx, payment.ID, entry, status); err != nil {
			return fmt.Errorf("append refund: %w", err)
		}
	}

	if fullyRefunded && payment.Type == entity.TypeBooking {
		booking, err := s.bookings.GetByID(ctx, payment.BookingID)
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if booking.PaymentStatus != entity.BookingRefunded {
			if err := s.bookings.SetPaymentStatus(ctx, payment.BookingID, entity.BookingRefunded); err != nil {
				return fmt.Errorf("set booking refunded: %w", err)
			}
		}
	}

	s.logger.Info("refund recorded",
		zap.String("payment_id", payment.ID),
		zap.String("refund_id", refundID),
		zap.Float64("amount", amount),
		zap.Bool("fully_refunded", fullyRefunded))
	return nil
}
