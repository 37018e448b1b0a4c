// Subscription row persistence. Rows are upserted keyed on user_id and
// never deleted; deactivation is recorded on the users table.
package app

import (
	"context"
	"database/sql"

	"github.com/savestateevan/stoicforge/app/models"
)

// UpsertSubscription stores the latest provider identifiers for a user.
func (s *Store) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	const q = `
		INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id, stripe_current_period_end)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			stripe_customer_id        = COALESCE(NULLIF(EXCLUDED.stripe_customer_id, ''), subscriptions.stripe_customer_id),
			stripe_subscription_id    = EXCLUDED.stripe_subscription_id,
			stripe_price_id           = EXCLUDED.stripe_price_id,
			stripe_current_period_end = EXCLUDED.stripe_current_period_end,
			updated_at                = now();
	`
	_, err := s.db.ExecContext(ctx, q,
		sub.UserID,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.StripePriceID,
		sub.StripeCurrentPeriodEnd,
	)
	return err
}

// FindUserByStripeCustomer reverse-maps a provider customer id to the
// user it belongs to. Returns sql.ErrNoRows for unknown customers.
func (s *Store) FindUserByStripeCustomer(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", sql.ErrNoRows
	}
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM subscriptions
		WHERE stripe_customer_id = $1;
	`, customerID).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}
