// Package processor defines the capability this core requires from the
// external payment processor. Orchestrators and webhook handlers depend on
// the Client interface only; the stripe subpackage is the production
// implementation and tests substitute fakes.
package processor

import "context"

// Endpoint selects which webhook signing secret verifies an inbound request.
type Endpoint int

const (
	EndpointPlatform Endpoint = iota
	EndpointConnect
)

// Session is a processor-hosted checkout page reference.
type Session struct {
	ID  string
	URL string
}

// CheckoutParams creates a one-off payment session for a booking.
type CheckoutParams struct {
	IdempotencyKey string
	CustomerID     string
	Amount         float64
	Currency       string
	Description    string
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
}

// SetupParams creates a no-charge session that saves a payment method.
type SetupParams struct {
	CustomerID string
	SuccessURL string
	CancelURL  string
}

// SubscriptionParams creates a recurring-payment session for a plan.
type SubscriptionParams struct {
	IdempotencyKey string
	CustomerID     string
	PlanName       string
	Amount         float64
	Currency       string
	Interval       string
	IntervalCount  int64
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
}

// OffSessionCharge confirms a charge against a saved payment method without
// cardholder interaction.
type OffSessionCharge struct {
	CustomerID      string
	PaymentMethodID string
	Amount          float64
	Currency        string
	Description     string
	Metadata        map[string]string
}

// ChargeResult mirrors the processor's payment intent outcome.
type ChargeResult struct {
	PaymentIntentID string
	Succeeded       bool
}

// PaymentMethod is a saved card reference.
type PaymentMethod struct {
	ID    string
	Brand string
	Last4 string
}

// Account is the authoritative connected-account snapshot.
type Account struct {
	ID               string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

// Event is a verified webhook event. Data holds the raw object JSON.
type Event struct {
	ID      string
	Type    string
	Account string
	Data    []byte
}

type Client interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)
	CreateSetupSession(ctx context.Context, p SetupParams) (*Session, error)
	CreateSubscriptionSession(ctx context.Context, p SubscriptionParams) (*Session, error)
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
	ChargeOffSession(ctx context.Context, p OffSessionCharge) (*ChargeResult, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	VerifyEvent(payload []byte, sigHeader string, endpoint Endpoint) (*Event, error)
}
