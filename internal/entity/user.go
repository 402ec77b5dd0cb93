package entity

import "time"

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleLender   UserRole = "lender"
	RoleAdmin    UserRole = "admin"
)

// OnboardingFlags are derived exclusively from an authoritative connected
// account snapshot, never from webhook payload fields.
type OnboardingFlags struct {
	DetailsSubmitted    bool `json:"details_submitted"`
	ChargesEnabled      bool `json:"charges_enabled"`
	PayoutsEnabled      bool `json:"payouts_enabled"`
	OnboardingCompleted bool `json:"onboarding_completed"`
}

type User struct {
	ID               string   `json:"id" db:"id"`
	Email            string   `json:"email" db:"email"`
	Role             UserRole `json:"role" db:"role"`
	StripeCustomerID string   `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	StripeAccountID  string   `json:"stripe_account_id,omitempty" db:"stripe_account_id"`

	OnboardingFlags

	SubscriptionActive    bool       `json:"subscription_active" db:"subscription_active"`
	SubscriptionPlanID    string     `json:"subscription_plan_id,omitempty" db:"subscription_plan_id"`
	SubscriptionStartsAt  *time.Time `json:"subscription_starts_at,omitempty" db:"subscription_starts_at"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty" db:"subscription_expires_at"`
}
