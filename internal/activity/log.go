// Package activity keeps the append-only log of user actions.
package activity

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

// Log records activity in memory and, when a sink is set, forwards each
// record to it.
type Log struct {
	store *entity.Store[model.ActivityRecord]
	sink  source.ActivitySink
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithSink persists every record through sink. Sink failures are logged
// and otherwise ignored.
func WithSink(sink source.ActivitySink) Option {
	return func(l *Log) { l.sink = sink }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates an empty log.
func New(log *zap.Logger, opts ...Option) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Log{
		store: entity.New(entity.Config[model.ActivityRecord]{
			Kind: "activity",
			IDs:  entity.UUIDs(),
		}),
		log: log.Named("activity"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry and returns it. It always succeeds.
func (l *Log) Record(ctx context.Context, user, action, target string) model.ActivityRecord {
	rec := model.ActivityRecord{
		User:      user,
		Action:    action,
		Target:    target,
		Timestamp: l.now().UTC(),
	}
	id, err := l.store.Create(rec)
	if err != nil {
		// UUID collisions are the only way to get here.
		l.log.Error("recording activity", zap.Error(err))
		return rec
	}
	rec.ID = id

	if l.sink != nil {
		if err := l.sink.AppendActivity(ctx, rec); err != nil {
			l.log.Warn("persisting activity",
				zap.String("id", rec.ID),
				zap.String("action", action),
				zap.Error(err))
		}
	}
	return rec
}

// Recent returns up to limit records, most recent first. A limit of zero
// or less returns everything.
func (l *Log) Recent(limit int) []model.ActivityRecord {
	all := l.store.GetAll()
	slices.Reverse(all)
	slices.SortStableFunc(all, func(a, b model.ActivityRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Load replaces the in-memory log with records fetched elsewhere, e.g.
// at startup. Sinks are not called.
func (l *Log) Load(recs []model.ActivityRecord) error {
	return l.store.Replace(recs)
}

// Len returns the number of records held.
func (l *Log) Len() int {
	return l.store.Len()
}

// Subscribe registers fn for every appended record.
func (l *Log) Subscribe(fn func(entity.Event)) (unsubscribe func()) {
	return l.store.Subscribe(fn)
}
