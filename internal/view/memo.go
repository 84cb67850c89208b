package view

import (
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/model"
)

// TaskSnapshotter is the slice of entity.Store[model.Task] a Memo reads.
type TaskSnapshotter interface {
	ID() string
	Revision() uint64
	GetAll() []model.Task
}

// Memo caches projections per (store, store revision, arguments). Any
// mutation bumps the store revision, so stale entries are never served;
// they simply expire. Cached values are copied on the way out.
type Memo struct {
	engine *Engine
	cache  *gocache.Cache
}

// NewMemo creates a Memo whose entries live for ttl.
func NewMemo(engine *Engine, ttl time.Duration) *Memo {
	return &Memo{
		engine: engine,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

type filterKey struct {
	Filter TaskFilter
	Sort   Sort
}

type columnsKey struct {
	ProjectID string
	Statuses  []model.TaskStatus
}

// FilterAndSort is Engine.FilterAndSort over src's current contents.
func (m *Memo) FilterAndSort(src TaskSnapshotter, filter TaskFilter, sort Sort) []model.Task {
	rev := src.Revision()
	key, ok := m.key(src, rev, "list", filterKey{Filter: filter, Sort: sort})
	if ok {
		if v, hit := m.cache.Get(key); hit {
			return cloneTasks(v.([]model.Task))
		}
	}

	out := m.engine.FilterAndSort(src.GetAll(), filter, sort)
	if ok {
		m.cache.SetDefault(key, cloneTasks(out))
	}
	return out
}

// Board is Engine.KanbanColumns over the tasks of one project.
func (m *Memo) Board(src TaskSnapshotter, projectID string, statuses []model.TaskStatus) Columns {
	rev := src.Revision()
	key, ok := m.key(src, rev, "board", columnsKey{ProjectID: projectID, Statuses: statuses})
	if ok {
		if v, hit := m.cache.Get(key); hit {
			return cloneColumns(v.(Columns))
		}
	}

	tasks := m.engine.FilterAndSort(src.GetAll(), TaskFilter{ProjectID: projectID}, Sort{})
	out := m.engine.KanbanColumns(tasks, statuses)
	if ok {
		m.cache.SetDefault(key, cloneColumns(out))
	}
	return out
}

// Len returns the number of live cache entries.
func (m *Memo) Len() int {
	return m.cache.ItemCount()
}

func (m *Memo) key(src TaskSnapshotter, rev uint64, kind string, args any) (string, bool) {
	h, err := hashstructure.Hash(args, hashstructure.FormatV2, nil)
	if err != nil {
		m.engine.log.Warn("memo key hashing failed", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("%s/%d/%s/%x", src.ID(), rev, kind, h), true
}

func cloneTasks(in []model.Task) []model.Task {
	out := make([]model.Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

func cloneColumns(in Columns) Columns {
	out := make(Columns, len(in))
	for st, tasks := range in {
		out[st] = cloneTasks(tasks)
	}
	return out
}
