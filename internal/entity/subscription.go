package entity

import "time"

type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// Duration returns the entitlement window a purchase of this cycle grants.
// Unknown cycles fall back to the monthly window.
func (c BillingCycle) Duration() time.Duration {
	switch c {
	case CycleQuarterly:
		return 90 * 24 * time.Hour
	case CycleYearly:
		return 365 * 24 * time.Hour
	case CycleMonthly:
		return 30 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

type SubscriptionPlan struct {
	ID           string       `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Price        float64      `json:"price" db:"price"`
	Currency     string       `json:"currency" db:"currency"`
	BillingCycle BillingCycle `json:"billing_cycle" db:"billing_cycle"`
	IsActive     bool         `json:"is_active" db:"is_active"`
}
