// Idempotency ledger for webhook deliveries. Stripe delivers events
// at-least-once; an event id is applied the first time it is seen and
// acknowledged without effect on every redelivery.
package app

import "context"

// MarkEventProcessed records an event id. It returns true when this call
// claimed the id, false when a previous delivery already did.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING;
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// UnmarkEventProcessed releases a claim after a failed application so
// the provider's redelivery can try again.
func (s *Store) UnmarkEventProcessed(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM processed_events
		WHERE event_id = $1;
	`, eventID)
	return err
}
