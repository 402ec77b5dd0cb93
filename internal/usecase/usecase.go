// Package usecase declares the orchestration ports the transport and webhook
// layers depend on.
package usecase

import "context"

// SubscriptionCheckoutResult is either a redirect to the processor (paid
// plan) or a completed synchronous activation (free plan).
type SubscriptionCheckoutResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	Activated   bool   `json:"activated"`
}

type Checkout interface {
	CreateBookingCheckout(ctx context.Context, bookingID, customerID string) (string, error)
	CreateSetupIntent(ctx context.Context, userID string) (string, error)
	CreateSubscriptionCheckout(ctx context.Context, planID, userID string) (*SubscriptionCheckoutResult, error)
}

// DisputeChargeResult reports the outcome of an admin-triggered off-session
// charge.
type DisputeChargeResult struct {
	DisputeID       string  `json:"disputeId"`
	UserID          string  `json:"userId"`
	Amount          float64 `json:"amount"`
	Reason          string  `json:"reason"`
	PaymentIntentID string  `json:"paymentIntentId"`
}

type Dispute interface {
	ChargeUserOffSession(ctx context.Context, disputeID string, amount float64, reason string) (*DisputeChargeResult, error)
}

// Settlement is the webhook-driven side of the ledger: every method is safe
// to call more than once for the same event.
type Settlement interface {
	SettleBookingPayment(ctx context.Context, paymentID, paymentIntentID string) error
	ActivateSubscription(ctx context.Context, paymentID, planID, userID, paymentIntentID string) error
	FailPayment(ctx context.Context, paymentID string) error
	FailPaymentByIntent(ctx context.Context, intentID string) error
	RecordRefund(ctx context.Context, intentID, refundID string, amount float64) error
}

type AccountSync interface {
	SyncAccount(ctx context.Context, accountID string) error
}

// Notifier delivers best-effort user notifications. Callers log and swallow
// its errors; delivery is a side channel, never part of the money path.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, body string) error
}
