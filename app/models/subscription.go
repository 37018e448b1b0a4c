package models

import "time"

// Subscription mirrors the Stripe identifiers for a user's subscription.
// At most one row exists per user; rows are upserted, never deleted.
type Subscription struct {
	UserID                 string     `db:"user_id"`
	StripeCustomerID       string     `db:"stripe_customer_id"`
	StripeSubscriptionID   string     `db:"stripe_subscription_id"`
	StripePriceID          string     `db:"stripe_price_id"`
	StripeCurrentPeriodEnd *time.Time `db:"stripe_current_period_end"`
}
