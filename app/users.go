// User persistence helpers for authenticated requests.
package app

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/savestateevan/stoicforge/app/models"
	"github.com/savestateevan/stoicforge/auth"
)

// EnsureUser creates a user row with a zero starting balance if one does
// not already exist.
func (s *Store) EnsureUser(ctx context.Context, userID, email string) error {
	if userID == "" {
		return nil
	}
	const q = `
		INSERT INTO users (id, email, credits, subscription_type)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := s.db.ExecContext(ctx, q, userID, email, models.PlanFree)
	return err
}

// UpsertUserFromClaims provisions a user on their first authenticated
// touch, pulling the email out of the token when present.
func (s *Store) UpsertUserFromClaims(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.Subject == "" {
		return nil
	}
	email := strings.TrimSpace(readStringClaim(claims.Raw, "email"))
	return s.EnsureUser(ctx, claims.Subject, email)
}

func readStringClaim(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

// GetUser loads the full user row.
func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var (
		user       models.User
		email      sql.NullString
		customerID sql.NullString
		createdAt  time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT email, credits, is_active_subscriber, subscription_type, stripe_customer_id, created_at
		FROM users
		WHERE id = $1;
	`, userID).Scan(&email, &user.Credits, &user.IsActiveSubscriber, &user.SubscriptionType, &customerID, &createdAt)
	if err != nil {
		return models.User{}, err
	}
	user.ID = userID
	user.Email = email.String
	user.StripeCustomerID = customerID.String
	user.CreatedAt = createdAt
	return user, nil
}

// SetSubscriptionStatus flips the activation flags maintained by the
// webhook reconciler.
func (s *Store) SetSubscriptionStatus(ctx context.Context, userID string, active bool, plan models.Plan) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_active_subscriber = $2, subscription_type = $3, updated_at = now()
		WHERE id = $1;
	`, userID, active, plan)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStripeCustomerID records the provider customer handle for a user.
func (s *Store) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET stripe_customer_id = $2, updated_at = now()
		WHERE id = $1;
	`, userID, customerID)
	return err
}

// GetStripeCustomerID returns the stored customer handle, which may be
// empty when the user has never initiated a checkout.
func (s *Store) GetStripeCustomerID(ctx context.Context, userID string) (string, error) {
	var customerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT stripe_customer_id
		FROM users
		WHERE id = $1;
	`, userID).Scan(&customerID)
	if err != nil {
		return "", err
	}
	return customerID.String, nil
}
