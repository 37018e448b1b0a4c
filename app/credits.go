// Credit ledger operations. The balance is the only shared mutable
// resource in the system, so every mutation here is a single atomic
// statement; nothing reads a balance and writes it back.
package app

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be a positive integer")
)

// GetCredits returns the current balance, or sql.ErrNoRows if the user
// has never been provisioned.
func (s *Store) GetCredits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := s.db.QueryRowContext(ctx, `
		SELECT credits
		FROM users
		WHERE id = $1;
	`, userID).Scan(&credits)
	if err != nil {
		return 0, err
	}
	return credits, nil
}

// GetOrCreateCredits lazily provisions the user with a zero balance so
// that provisioning never surfaces as a user-facing failure.
func (s *Store) GetOrCreateCredits(ctx context.Context, userID, email string) (int, error) {
	credits, err := s.GetCredits(ctx, userID)
	if err == nil {
		return credits, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if err := s.EnsureUser(ctx, userID, email); err != nil {
		return 0, err
	}
	return s.GetCredits(ctx, userID)
}

// CanSpend reports whether the user's balance covers amount. The user is
// provisioned on first touch.
func (s *Store) CanSpend(ctx context.Context, userID string, amount int) (bool, error) {
	credits, err := s.GetOrCreateCredits(ctx, userID, "")
	if err != nil {
		return false, err
	}
	return credits >= amount, nil
}

// Debit decrements the balance by amount and returns the new balance.
// The decrement is conditional at the datastore: a concurrent debit that
// would drive the balance negative matches zero rows and fails with
// ErrInsufficientCredits instead.
func (s *Store) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var credits int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET credits = credits - $2, updated_at = now()
		WHERE id = $1 AND credits >= $2
		RETURNING credits;
	`, userID, amount).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	return credits, nil
}

// Credit increments the balance by amount and returns the new balance,
// provisioning the user row if a purchase arrives before their first
// authenticated touch.
func (s *Store) Credit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var credits int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, credits)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET credits = users.credits + $2, updated_at = now()
		RETURNING credits;
	`, userID, amount).Scan(&credits)
	if err != nil {
		return 0, err
	}
	return credits, nil
}
