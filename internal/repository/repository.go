// Package repository declares the persistence ports. Implementations live in
// the postgres subpackage; service tests substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"rentpay/internal/entity"
)

type PaymentRepository interface {
	// Create inserts a validated ledger row.
	Create(ctx context.Context, p *entity.Payment) error
	GetByID(ctx context.Context, paymentID string) (*entity.Payment, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*entity.Payment, error)
	// FindOrCreatePendingBookingPayment atomically reuses the booking's
	// existing Pending payment or inserts p. The second return reports
	// whether a new row was created.
	FindOrCreatePendingBookingPayment(ctx context.Context, p *entity.Payment) (*entity.Payment, bool, error)
	AttachCheckoutSession(ctx context.Context, paymentID, sessionID string) error
	// MarkPaid transitions Pending to Paid and reports whether this call won
	// the transition; replays return false.
	MarkPaid(ctx context.Context, paymentID, paymentIntentID string) (bool, error)
	MarkFailed(ctx context.Context, paymentID string) (bool, error)
	AppendRefund(ctx context.Context, paymentID string, entry entity.RefundEntry, status entity.PaymentStatus) error
}

type BookingRepository interface {
	GetByID(ctx context.Context, bookingID string) (*entity.Booking, error)
	SetPaymentStatus(ctx context.Context, bookingID string, status entity.BookingPaymentStatus) error
}

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*entity.User, error)
	GetByStripeAccount(ctx context.Context, accountID string) (*entity.User, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
	SetOnboarding(ctx context.Context, userID string, flags entity.OnboardingFlags) error
	SetEntitlement(ctx context.Context, userID, planID string, startsAt, expiresAt time.Time) error
}

type PlanRepository interface {
	GetByID(ctx context.Context, planID string) (*entity.SubscriptionPlan, error)
}

type ListingRepository interface {
	GetByID(ctx context.Context, listingID string) (*entity.Listing, error)
}

type DisputeRepository interface {
	GetByID(ctx context.Context, disputeID string) (*entity.Dispute, error)
	AppendTimeline(ctx context.Context, disputeID string, entry entity.TimelineEntry) error
}
