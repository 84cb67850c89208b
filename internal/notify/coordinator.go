// Package notify keeps the client-side notification state in sync with the
// notification API: loading, optimistic read marking with rollback, and
// periodic refresh.
package notify

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/view"
)

// State is the load state of the notification collection.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateLoadFailed:
		return "load failed"
	}
	return "unknown"
}

// LocalPrefix marks notifications generated on this client. The source
// never sees them, so they are read locally and kept across loads.
const LocalPrefix = "local-"

// IsLocal reports whether id belongs to a notification created by Push.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

// pendingRead is an optimistic read mark awaiting confirmation.
type pendingRead struct {
	token    uint64
	prevRead bool
}

// Coordinator owns the local notification collection.
type Coordinator struct {
	src     source.NotificationSource
	store   *entity.Store[model.Notification]
	log     *zap.Logger
	metrics *Metrics

	// applyMu serializes the stale check and store replacement of Load
	// with Push and Deliver, so local additions are not lost.
	applyMu sync.Mutex

	mu         sync.Mutex
	state      State
	err        error
	generation uint64
	nextToken  uint64
	pending    map[string]pendingRead
}

// NewCoordinator creates a coordinator reading from src. Metrics are
// registered on reg when it is non-nil.
func NewCoordinator(src source.NotificationSource, log *zap.Logger, reg prometheus.Registerer) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		src: src,
		store: entity.New(entity.Config[model.Notification]{
			Kind: "notification",
			IDs:  entity.UUIDs(),
		}),
		log:     log.Named("notify"),
		pending: make(map[string]pendingRead),
	}
	c.metrics = newMetrics(reg, func() float64 { return float64(c.UnreadCount()) })
	return c
}

// Metrics exposes the coordinator's collectors.
func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

// State returns the current load state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error of the last failed load, or nil.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Load fetches the full notification list and replaces the local copy.
// A response that arrives after a newer Load has started is discarded.
// On failure the previous data is kept and the state becomes
// StateLoadFailed.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state = StateLoading
	c.mu.Unlock()

	ns, fetchErr := c.src.FetchNotifications(ctx)

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.log.Debug("discarding stale notification load", zap.Uint64("generation", gen))
		return nil
	}
	if fetchErr != nil {
		err := source.Wrap(source.OpFetchNotifications, fetchErr)
		c.state = StateLoadFailed
		c.err = err
		c.mu.Unlock()

		c.metrics.ExternalErrors.WithLabelValues(source.OpFetchNotifications).Inc()
		c.log.Warn("loading notifications", zap.Error(fetchErr))
		return err
	}
	for i := range ns {
		if _, ok := c.pending[ns[i].ID]; ok {
			ns[i].IsRead = true
		}
	}
	c.mu.Unlock()

	for _, n := range c.store.GetAll() {
		if IsLocal(n.ID) {
			ns = append(ns, n)
		}
	}

	if err := c.store.Replace(ns); err != nil {
		c.mu.Lock()
		if gen == c.generation {
			c.state = StateLoadFailed
			c.err = err
		}
		c.mu.Unlock()
		c.log.Warn("notification payload rejected", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if gen == c.generation {
		c.state = StateLoaded
		c.err = nil
	}
	c.mu.Unlock()

	c.log.Debug("notifications loaded", zap.Int("count", len(ns)))
	return nil
}

// MarkRead marks one notification read locally, then confirms with the
// API. If the API call fails the local change is reverted, unless a newer
// change to the same notification has been made in the meantime. Local
// notifications are never sent to the API.
func (c *Coordinator) MarkRead(ctx context.Context, id string) error {
	cur, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if IsLocal(id) {
		_, err := c.store.Update(id, func(n *model.Notification) { n.IsRead = true })
		return err
	}

	token := c.begin(id, cur.IsRead)
	if _, err := c.store.Update(id, func(n *model.Notification) { n.IsRead = true }); err != nil {
		c.finish(id, token)
		return err
	}

	if err := c.src.MarkNotificationRead(ctx, id); err != nil {
		c.fail(source.OpMarkNotificationRead, err, map[string]uint64{id: token})
		return source.Wrap(source.OpMarkNotificationRead, err)
	}

	c.finish(id, token)
	return nil
}

// MarkAllRead marks every unread notification read in one local change,
// then confirms with the API, reverting on failure like MarkRead.
func (c *Coordinator) MarkAllRead(ctx context.Context) error {
	var ids []string
	for _, n := range c.store.GetAll() {
		if !n.IsRead {
			ids = append(ids, n.ID)
		}
	}

	tokens := make(map[string]uint64, len(ids))
	for _, id := range ids {
		tokens[id] = c.begin(id, false)
	}
	if len(ids) > 0 {
		if _, err := c.store.UpdateMany(ids, func(n *model.Notification) { n.IsRead = true }); err != nil {
			// A concurrent load removed one of them; mark the rest one by one.
			c.markEach(ids, err)
		}
	}

	if err := c.src.MarkAllNotificationsRead(ctx); err != nil {
		c.fail(source.OpMarkAllNotificationsRead, err, tokens)
		return source.Wrap(source.OpMarkAllNotificationsRead, err)
	}

	for id, token := range tokens {
		c.finish(id, token)
	}
	return nil
}

// markEach marks ids read one at a time and logs the ones that could not
// be marked.
func (c *Coordinator) markEach(ids []string, cause error) {
	var skipped []string
	for _, id := range ids {
		if _, err := c.store.Update(id, func(n *model.Notification) { n.IsRead = true }); err != nil {
			skipped = append(skipped, id)
		}
	}
	if len(skipped) > 0 {
		c.log.Warn("notifications not marked read locally",
			zap.Strings("skipped", skipped),
			zap.Error(cause))
	}
}

// Push shows a notification generated on this client and unknown to the
// source. It is given a local id and kept until the coordinator goes
// away. Pushing a local notification again replaces it; any other id is
// refused.
func (c *Coordinator) Push(n model.Notification) (model.Notification, error) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	switch {
	case n.ID == "":
		n.ID = LocalPrefix + uuid.NewString()
	case !IsLocal(n.ID):
		return model.Notification{}, &entity.DuplicateKeyError{Kind: "notification", Field: "id", Value: n.ID}
	default:
		if _, err := c.store.Get(n.ID); err == nil {
			return c.store.Update(n.ID, func(cur *model.Notification) { *cur = n })
		}
	}
	if _, err := c.store.Create(n); err != nil {
		return model.Notification{}, err
	}
	return c.store.Get(n.ID)
}

// Deliver shows a notification the source already holds, such as one
// just written through it, ahead of the next Load. A notification that
// is already present is left as it is.
func (c *Coordinator) Deliver(n model.Notification) (model.Notification, error) {
	if n.ID == "" || IsLocal(n.ID) {
		return model.Notification{}, &model.ValidationError{Entity: "notification", Field: "id", Reason: "must be a source id"}
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if cur, err := c.store.Get(n.ID); err == nil {
		return cur, nil
	}
	if _, err := c.store.Create(n); err != nil {
		return model.Notification{}, err
	}
	return c.store.Get(n.ID)
}

// Notifications returns every notification, newest first.
func (c *Coordinator) Notifications() []model.Notification {
	all := c.store.GetAll()
	slices.SortStableFunc(all, func(a, b model.Notification) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return all
}

// UnreadCount is derived from the current collection on every call.
func (c *Coordinator) UnreadCount() int {
	return view.UnreadCount(c.store.GetAll())
}

// Subscribe registers fn for every change to the collection.
func (c *Coordinator) Subscribe(fn func(entity.Event)) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// Pending returns how many optimistic changes await confirmation.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coordinator) begin(id string, prevRead bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextToken++
	if p, ok := c.pending[id]; ok {
		// Stacked marks revert to the state before the first one.
		prevRead = p.prevRead
	}
	c.pending[id] = pendingRead{token: c.nextToken, prevRead: prevRead}
	return c.nextToken
}

// finish drops the pending entry for id if token is still current.
func (c *Coordinator) finish(id string, token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[id]; ok && p.token == token {
		delete(c.pending, id)
		return true
	}
	return false
}

func (c *Coordinator) fail(op string, cause error, tokens map[string]uint64) {
	c.metrics.ExternalErrors.WithLabelValues(op).Inc()

	reverted := 0
	for id, token := range tokens {
		c.mu.Lock()
		p, ok := c.pending[id]
		current := ok && p.token == token
		if current {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if !current {
			continue
		}

		_, err := c.store.Update(id, func(n *model.Notification) { n.IsRead = p.prevRead })
		if err != nil && !entity.IsNotFound(err) {
			c.log.Error("reverting notification", zap.String("id", id), zap.Error(err))
			continue
		}
		if err == nil {
			reverted++
			c.metrics.Rollbacks.Inc()
		}
	}

	c.log.Warn("notification update failed, local change reverted",
		zap.String("op", op),
		zap.Int("reverted", reverted),
		zap.Error(cause))
}
