package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/taskhub/internal/model"
)

// AppendActivity stores rec. Records without an id get a UUID; a record
// whose id is already stored is ignored.
func (s *SQLiteStore) AppendActivity(ctx context.Context, rec model.ActivityRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO activity (id, user_name, action, target, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.User, rec.Action, rec.Target, rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending activity: %w", err)
	}
	return nil
}

// ListActivity returns up to limit records, most recent first.
func (s *SQLiteStore) ListActivity(ctx context.Context, limit int) ([]model.ActivityRecord, error) {
	query := "SELECT id, user_name, action, target, timestamp FROM activity ORDER BY timestamp DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var recs []model.ActivityRecord
	if err := s.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	return recs, nil
}
