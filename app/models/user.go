// Package models defines user, subscription and chat log fields.
package models

import "time"

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

// User is keyed by the identity provider's subject id; there is no
// internal surrogate identity.
type User struct {
	ID                 string    `db:"id"`
	Email              string    `db:"email"`
	Credits            int       `db:"credits"`
	IsActiveSubscriber bool      `db:"is_active_subscriber"`
	SubscriptionType   Plan      `db:"subscription_type"`
	StripeCustomerID   string    `db:"stripe_customer_id"`
	CreatedAt          time.Time `db:"created_at"`
}
