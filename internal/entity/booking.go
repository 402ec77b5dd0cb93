package entity

import "time"

type BookingPaymentStatus string

const (
	BookingUnpaid   BookingPaymentStatus = "unpaid"
	BookingPaid     BookingPaymentStatus = "paid"
	BookingRefunded BookingPaymentStatus = "refunded"
)

type DeliveryMethod string

const (
	DeliveryShipping DeliveryMethod = "Shipping"
	DeliveryPickup   DeliveryMethod = "Pickup"
)

// Booking is owned by the booking service; this core only reads it and
// settles its payment status from webhook delivery.
type Booking struct {
	ID            string               `json:"id" db:"id"`
	ListingID     string               `json:"listing_id" db:"listing_id"`
	CustomerID    string               `json:"customer_id" db:"customer_id"`
	LenderID      string               `json:"lender_id" db:"lender_id"`
	RentalDays    int                  `json:"rental_days" db:"rental_days"`
	Delivery      DeliveryMethod       `json:"delivery" db:"delivery"`
	Insurance     bool                 `json:"insurance" db:"insurance"`
	PaymentStatus BookingPaymentStatus `json:"payment_status" db:"payment_status"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
}

// Listing carries the price tiers fee computation reads.
type Listing struct {
	ID        string  `json:"id" db:"id"`
	LenderID  string  `json:"lender_id" db:"lender_id"`
	Price4Day float64 `json:"price_4_day" db:"price_4_day"`
	Price8Day float64 `json:"price_8_day" db:"price_8_day"`
}
