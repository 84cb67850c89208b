// Package store persists users, projects, tasks, notifications and the
// activity log in SQLite.
package store

import (
	"context"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

// Store is everything the SQLite backend offers: the workspace backend,
// notification and activity persistence, and lifecycle.
type Store interface {
	source.Backend
	source.NotificationWriter
	source.ActivitySink

	// ListActivity returns up to limit records, most recent first.
	// A limit of zero or less returns everything.
	ListActivity(ctx context.Context, limit int) ([]model.ActivityRecord, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
