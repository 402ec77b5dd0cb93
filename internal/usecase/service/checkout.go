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
	"rentpay/internal/fees"
	"rentpay/internal/processor"
	"rentpay/internal/repository"
	"rentpay/internal/usecase"
)

// CheckoutService creates idempotent processor sessions for bookings, saved
// payment methods, and subscription plans.
type CheckoutService struct {
	payments repository.PaymentRepository
	bookings repository.BookingRepository
	users    repository.UserRepository
	plans    repository.PlanRepository
	listings repository.ListingRepository
	proc     processor.Client
	notifier usecase.Notifier
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewCheckoutService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	listings repository.ListingRepository,
	proc processor.Client,
	notifier usecase.Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		payments: payments,
		bookings: bookings,
		users:    users,
		plans:    plans,
		listings: listings,
		proc:     proc,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "checkout_service")),
		now:      time.Now,
	}
}

// CreateBookingCheckout returns the redirect URL of the booking's checkout
// session. A repeat call before settlement reuses the existing Pending
// payment; the payment id doubles as the processor idempotency key, so the
// processor resolves the retried create to the same session.
func (s *CheckoutService) CreateBookingCheckout(ctx context.Context, bookingID, customerID string) (string, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("load booking: %w", err)
	}
	if booking.CustomerID != customerID {
		return "", fmt.Errorf("booking %s does not belong to caller: %w", bookingID, apperr.ErrUnauthorized)
	}
	if booking.PaymentStatus == entity.BookingPaid {
		return "", fmt.Errorf("booking %s already paid: %w", bookingID, apperr.ErrConflict)
	}

	listing, err := s.listings.GetByID(ctx, booking.ListingID)
	if err != nil {
		return "", fmt.Errorf("load listing: %w", err)
	}
	breakdown, err := fees.Calculate(*listing, booking.RentalDays, booking.Delivery, booking.Insurance)
	if err != nil {
		return "", fmt.Errorf("compute fees: %w", err)
	}

	candidate := &entity.Payment{
		ID:         uuid.New().String(),
		Type:       entity.TypeBooking,
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		LenderID:   booking.LenderID,
		ListingID:  booking.ListingID,
		Amount:     breakdown.Total,
		Currency:   s.cfg.App.Currency,
		Status:     entity.StatusPending,
	}
	candidate.IdempotencyKey = candidate.ID

	payment, created, err := s.payments.FindOrCreatePendingBookingPayment(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("find or create pending payment: %w", err)
	}
	if !created {
		s.logger.Info("reusing pending payment for booking",
			zap.String("booking_id", bookingID),
			zap.String("payment_id", payment.ID))
	}

	session, err := s.proc.CreateCheckoutSession(ctx, processor.CheckoutParams{
		IdempotencyKey: payment.ID,
		CustomerID:     s.stripeCustomerIDOf(ctx, customerID),
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Description:    fmt.Sprintf("Rental booking %s", booking.ID),
		Metadata: map[string]string{
			"paymentId": payment.ID,
			"bookingId": booking.ID,
		},
		SuccessURL: s.cfg.Stripe.SuccessURL,
		CancelURL:  s.cfg.Stripe.CancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.payments.AttachCheckoutSession(ctx, payment.ID, session.ID); err != nil {
		return "", fmt.Errorf("attach checkout session: %w", err)
	}

	s.logger.Info("booking checkout session created",
		zap.String("booking_id", bookingID),
		zap.String("payment_id", payment.ID),
		zap.String("session_id", session.ID))
	return session.URL, nil
}

// stripeCustomerIDOf returns the user's persisted processor customer id, or
// empty when the user has none; booking checkout works either way.
func (s *CheckoutService) stripeCustomerIDOf(ctx context.Context, userID string) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("could not resolve stripe customer for checkout",
			zap.String("user_id", userID),
			zap.Error(err))
		return ""
	}
	return user.StripeCustomerID
}

// CreateSetupIntent opens a no-charge session that saves a payment method.
// The processor customer identity is created once and reused afterwards.
func (s *CheckoutService) CreateSetupIntent(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = s.proc.CreateCustomer(ctx, user.Email, user.ID)
		if err != nil {
			return "", fmt.Errorf("create processor customer: %w", err)
		}
		if err := s.users.SetStripeCustomer(ctx, user.ID, customerID); err != nil {
			return "", fmt.Errorf("persist processor customer: %w", err)
		}
	}

	session, err := s.proc.CreateSetupSession(ctx, processor.SetupParams{
		CustomerID: customerID,
		SuccessURL: s.cfg.Stripe.SuccessURL,
		CancelURL:  s.cfg.Stripe.CancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("create setup session: %w", err)
	}
	return session.URL, nil
}

// CreateSubscriptionCheckout sells a plan to a lender. Free plans activate
// synchronously; paid plans defer activation to the webhook path.
func (s *CheckoutService) CreateSubscriptionCheckout(ctx context.Context, planID, userID string) (*usecase.SubscriptionCheckoutResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Role != entity.RoleLender {
		return nil, fmt.Errorf("subscription plans are lender-only: %w", apperr.ErrUnauthorized)
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("plan %s is inactive: %w", planID, apperr.ErrConflict)
	}

	if plan.Price == 0 {
		return s.activateFreePlan(ctx, user, plan)
	}

	payment := &entity.Payment{
		ID:         uuid.New().String(),
		Type:       entity.TypeSubscription,
		PlanID:     plan.ID,
		CustomerID: user.ID,
		Amount:     plan.Price,
		Currency:   plan.Currency,
		Status:     entity.StatusPending,
	}
	payment.IdempotencyKey = payment.ID
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create pending subscription payment: %w", err)
	}

	interval, intervalCount := billingInterval(plan.BillingCycle)
	session, err := s.proc.CreateSubscriptionSession(ctx, processor.SubscriptionParams{
		IdempotencyKey: payment.ID,
		CustomerID:     user.StripeCustomerID,
		PlanName:       plan.Name,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Interval:       interval,
		IntervalCount:  intervalCount,
		Metadata: map[string]string{
			"paymentId": payment.ID,
			"planId":    plan.ID,
			"userId":    user.ID,
		},
		SuccessURL: s.cfg.Stripe.SuccessURL,
		CancelURL:  s.cfg.Stripe.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription session: %w", err)
	}

	if err := s.payments.AttachCheckoutSession(ctx, payment.ID, session.ID); err != nil {
		return nil, fmt.Errorf("attach checkout session: %w", err)
	}

	s.logger.Info("subscription checkout session created",
		zap.String("plan_id", planID),
		zap.String("user_id", userID),
		zap.String("payment_id", payment.ID))
	return &usecase.SubscriptionCheckoutResult{CheckoutURL: session.URL}, nil
}

func (s *CheckoutService) activateFreePlan(ctx context.Context, user *entity.User, plan *entity.SubscriptionPlan) (*usecase.SubscriptionCheckoutResult, error) {
	start := s.now()
	expiry := start.Add(plan.BillingCycle.Duration())

	if err := s.users.SetEntitlement(ctx, user.ID, plan.ID, start, expiry); err != nil {
		return nil, fmt.Errorf("set entitlement: %w", err)
	}

	payment := &entity.Payment{
		ID:         uuid.New().String(),
		Type:       entity.TypeSubscription,
		PlanID:     plan.ID,
		CustomerID: user.ID,
		Amount:     0,
		Currency:   plan.Currency,
		Status:     entity.StatusPaid,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("record free plan payment: %w", err)
	}

	if err := s.notifier.Notify(ctx, user.ID, "Subscription active",
		fmt.Sprintf("Your %s plan is now active until %s.", plan.Name, expiry.Format(time.RFC1123))); err != nil {
		s.logger.Warn("welcome notification failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	s.logger.Info("free plan activated",
		zap.String("plan_id", plan.ID),
		zap.String("user_id", user.ID),
		zap.Time("expires_at", expiry))
	return &usecase.SubscriptionCheckoutResult{Activated: true}, nil
}

// billingInterval maps a plan cycle onto the processor's recurring interval.
func billingInterval(cycle entity.BillingCycle) (string, int64) {
	switch cycle {
	case entity.CycleQuarterly:
		return "month", 3
	case entity.CycleYearly:
		return "year", 1
	default:
		return "month", 1
	}
}
