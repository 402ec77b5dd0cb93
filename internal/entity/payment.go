package entity

import (
	"fmt"
	"time"
)

type PaymentType string

const (
	TypeBooking      PaymentType = "booking"
	TypeSubscription PaymentType = "subscription"
	TypeDispute      PaymentType = "dispute"
)

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusPaid     PaymentStatus = "PAID"
	StatusFailed   PaymentStatus = "FAILED"
	StatusRefunded PaymentStatus = "REFUNDED"
)

// RefundEntry is one element of a payment's append-only refund history.
type RefundEntry struct {
	RefundID string    `json:"refund_id"`
	Amount   float64   `json:"amount"`
	At       time.Time `json:"at"`
}

// Payment is the ledger entry for a single money movement. It is created
// locally before any processor call and never deleted; its ID doubles as the
// processor idempotency key for checkout-session creation.
type Payment struct {
	ID                string        `json:"id" db:"id"`
	Type              PaymentType   `json:"type" db:"type"`
	BookingID         string        `json:"booking_id,omitempty" db:"booking_id"`
	PlanID            string        `json:"plan_id,omitempty" db:"plan_id"`
	CustomerID        string        `json:"customer_id,omitempty" db:"customer_id"`
	LenderID          string        `json:"lender_id,omitempty" db:"lender_id"`
	ListingID         string        `json:"listing_id,omitempty" db:"listing_id"`
	Amount            float64       `json:"amount" db:"amount"`
	Currency          string        `json:"currency" db:"currency"`
	Status            PaymentStatus `json:"status" db:"status"`
	CheckoutSessionID string        `json:"checkout_session_id,omitempty" db:"checkout_session_id"`
	PaymentIntentID   string        `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	IdempotencyKey    string        `json:"idempotency_key,omitempty" db:"idempotency_key"`
	Refunds           []RefundEntry `json:"refunds" db:"refunds"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// RefundedTotal sums the refund history.
func (p *Payment) RefundedTotal() float64 {
	var total float64
	for _, r := range p.Refunds {
		total += r.Amount
	}
	return total
}

// HasRefund reports whether a processor refund id was already recorded.
func (p *Payment) HasRefund(refundID string) bool {
	for _, r := range p.Refunds {
		if r.RefundID == refundID {
			return true
		}
	}
	return false
}

// Validate is applied before every ledger write.
func (p *Payment) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("payment id is required")
	}
	if p.Amount < 0 {
		return fmt.Errorf("payment amount must not be negative, got %f", p.Amount)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", p.Currency)
	}
	switch p.Status {
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded:
	default:
		return fmt.Errorf("unknown payment status %q", p.Status)
	}
	switch p.Type {
	case TypeBooking:
		if p.BookingID == "" {
			return fmt.Errorf("booking payment requires a booking reference")
		}
	case TypeSubscription:
		if p.PlanID == "" || p.CustomerID == "" {
			return fmt.Errorf("subscription payment requires plan and customer references")
		}
	case TypeDispute:
		if p.CustomerID == "" {
			return fmt.Errorf("dispute payment requires a customer reference")
		}
	default:
		return fmt.Errorf("unknown payment type %q", p.Type)
	}
	return nil
}
