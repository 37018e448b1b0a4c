// Append-only chat log persistence.
package app

import (
	"context"

	"github.com/savestateevan/stoicforge/app/models"
)

// historyLimit bounds how many rows the history endpoint returns.
const historyLimit = 50

// AppendMessages inserts chat log rows in one transaction so a saved
// exchange is always the user turn plus the assistant turn.
func (s *Store) AppendMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO messages (user_id, role, content, mentor_id)
		VALUES ($1, $2, $3, $4);
	`
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, q, m.UserID, m.Role, m.Content, m.MentorID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentMessages returns the most recent rows for a user in ascending
// creation order, bounded by historyLimit.
func (s *Store) RecentMessages(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, mentor_id, created_at
		FROM (
			SELECT id, role, content, mentor_id, created_at
			FROM messages
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC;
	`, userID, historyLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m := models.Message{UserID: userID}
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.MentorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
