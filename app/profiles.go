// Profile persistence.
package app

import (
	"context"

	"github.com/savestateevan/stoicforge/app/models"
)

// UpsertProfile creates or replaces the profile for a user.
func (s *Store) UpsertProfile(ctx context.Context, p models.Profile) error {
	const q = `
		INSERT INTO profiles (user_id, name, bio, is_public)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			name      = EXCLUDED.name,
			bio       = EXCLUDED.bio,
			is_public = EXCLUDED.is_public;
	`
	_, err := s.db.ExecContext(ctx, q, p.UserID, p.Name, p.Bio, p.IsPublic)
	return err
}

// GetProfile loads the profile row; sql.ErrNoRows when none exists.
func (s *Store) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	p := models.Profile{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, bio, is_public
		FROM profiles
		WHERE user_id = $1;
	`, userID).Scan(&p.Name, &p.Bio, &p.IsPublic)
	if err != nil {
		return models.Profile{}, err
	}
	return p, nil
}
