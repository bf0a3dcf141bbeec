package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

// InsertActivity appends one session event to the activity log. The unique
// event id makes redelivered Kafka messages harmless.
func (s *Store) InsertActivity(ctx context.Context, rec *models.ActivityRecord) error {
	query := `
		INSERT INTO activity (event_id, event_type, owner_id, session_id, item_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		rec.EventID, rec.EventType, rec.OwnerID, rec.SessionID, rec.ItemID, rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert activity record: %w", err)
	}
	return nil
}

// GetActivityByOwner returns the most recent activity for an owner, newest
// first.
func (s *Store) GetActivityByOwner(ctx context.Context, ownerID string, limit int) ([]models.ActivityRecord, error) {
	var records []models.ActivityRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, event_id, event_type, owner_id, session_id, item_id, payload, created_at
		FROM activity WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2`, ownerID, limit)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return records, nil
}
