// Package fees derives the price breakdown for a rental from the listing and
// the selected options. It is pure: no I/O, no clock.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"rentpay/internal/entity"
)

const (
	insuranceFee   = 5.0
	pickupFee      = 10.0
	shippingFee    = 15.0
	commissionRate = 0.10
)

// Breakdown is the full fee split for one booking.
type Breakdown struct {
	Base           float64 `json:"base"`
	Insurance      float64 `json:"insurance"`
	Delivery       float64 `json:"delivery"`
	Total          float64 `json:"total"`
	Commission     float64 `json:"commission"`
	LenderEarnings float64 `json:"lender_earnings"`
}

// Calculate computes the breakdown for the given rental duration and options.
// Commission is rounded to cents independently before lender earnings are
// derived; the ordering matters for cent-level reconciliation with the ledger.
func Calculate(listing entity.Listing, rentalDays int, delivery entity.DeliveryMethod, insurance bool) (Breakdown, error) {
	var base float64
	switch rentalDays {
	case 4:
		base = listing.Price4Day
	case 8:
		base = listing.Price8Day
	default:
		return Breakdown{}, fmt.Errorf("unsupported rental duration %d days", rentalDays)
	}

	var deliveryFee float64
	switch delivery {
	case entity.DeliveryPickup:
		deliveryFee = pickupFee
	case entity.DeliveryShipping:
		deliveryFee = shippingFee
	default:
		return Breakdown{}, fmt.Errorf("unsupported delivery method %q", delivery)
	}

	var insuranceAmt float64
	if insurance {
		insuranceAmt = insuranceFee
	}

	total := base + insuranceAmt + deliveryFee

	commission := decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(commissionRate)).
		Round(2)
	earnings := decimal.NewFromFloat(total).
		Sub(commission).
		Round(2)

	commissionF, _ := commission.Float64()
	earningsF, _ := earnings.Float64()

	return Breakdown{
		Base:           base,
		Insurance:      insuranceAmt,
		Delivery:       deliveryFee,
		Total:          total,
		Commission:     commissionF,
		LenderEarnings: earningsF,
	}, nil
}
