// Package workspace composes the entity stores, the notification
// coordinator and the activity log over one backend.
package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/taskhub/internal/activity"
	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/notify"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/view"
)

// activityLister is implemented by backends that keep the activity log
// across runs.
type activityLister interface {
	ListActivity(ctx context.Context, limit int) ([]model.ActivityRecord, error)
}

// Workspace is the single client-side store. The exported collections
// may be read and subscribed to directly; mutations should go through
// the Workspace methods so they are permission checked, validated and
// confirmed with the backend.
type Workspace struct {
	Users         *entity.Store[model.User]
	Projects      *entity.Store[model.Project]
	Tasks         *entity.Store[model.Task]
	Notifications *notify.Coordinator
	Activity      *activity.Log

	backend source.Backend
	// ownFeed is set when notifications are read from the backend.
	ownFeed bool
	log     *zap.Logger
	engine  *view.Engine
	memo    *view.Memo
	now     func() time.Time
}

type options struct {
	log           *zap.Logger
	reg           prometheus.Registerer
	notifications source.NotificationSource
	now           func() time.Time
	memoTTL       time.Duration
}

// Option configures a Workspace.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRegistry registers the notification metrics with reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithNotificationSource reads notifications from src instead of the backend.
func WithNotificationSource(src source.NotificationSource) Option {
	return func(o *options) { o.notifications = src }
}

// WithClock replaces time.Now for activity timestamps and record versions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMemoTTL sets how long cached board projections live.
func WithMemoTTL(ttl time.Duration) Option {
	return func(o *options) { o.memoTTL = ttl }
}

// New creates an empty workspace over backend. Call Hydrate to load it.
func New(backend source.Backend, opts ...Option) *Workspace {
	o := options{
		log:     zap.NewNop(),
		now:     time.Now,
		memoTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	ownFeed := o.notifications == nil
	if ownFeed {
		o.notifications = backend
	}

	activityOpts := []activity.Option{activity.WithClock(o.now)}
	if sink, ok := backend.(source.ActivitySink); ok {
		activityOpts = append(activityOpts, activity.WithSink(sink))
	}

	engine := view.NewEngine(o.log)
	return &Workspace{
		Users: entity.New(entity.Config[model.User]{
			Kind:     "user",
			Validate: model.User.Validate,
			Unique:   []entity.Index[model.User]{{Name: "email", Key: model.User.EmailKey}},
			Now:      o.now,
		}),
		Projects: entity.New(entity.Config[model.Project]{
			Kind:     "project",
			Validate: model.Project.Validate,
			Now:      o.now,
		}),
		Tasks: entity.New(entity.Config[model.Task]{
			Kind:     "task",
			Validate: model.Task.Validate,
			Now:      o.now,
		}),
		Notifications: notify.NewCoordinator(o.notifications, o.log, o.reg),
		Activity:      activity.New(o.log, activityOpts...),
		backend:       backend,
		ownFeed:       ownFeed,
		log:           o.log.Named("workspace"),
		engine:        engine,
		memo:          view.NewMemo(engine, o.memoTTL),
		now:           o.now,
	}
}

// Hydrate fetches users, projects and tasks concurrently and replaces the
// local collections, then loads notifications. A notification failure
// does not fail Hydrate; it is reported by Notifications.State and Err.
func (w *Workspace) Hydrate(ctx context.Context) error {
	var (
		users    []model.User
		projects []model.Project
		tasks    []model.Task
		recs     []model.ActivityRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = w.backend.ListUsers(gctx)
		return source.Wrap(source.OpListUsers, err)
	})
	g.Go(func() error {
		var err error
		projects, err = w.backend.ListProjects(gctx)
		return source.Wrap(source.OpListProjects, err)
	})
	g.Go(func() error {
		var err error
		tasks, err = w.backend.ListTasks(gctx)
		return source.Wrap(source.OpListTasks, err)
	})
	if lister, ok := w.backend.(activityLister); ok {
		g.Go(func() error {
			var err error
			recs, err = lister.ListActivity(gctx, 0)
			return source.Wrap(source.OpListActivity, err)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("hydrating workspace: %w", err)
	}

	for i := range users {
		users[i] = users[i].Public()
	}
	if err := w.Users.Replace(users); err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	if err := w.Projects.Replace(projects); err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}
	if err := w.Tasks.Replace(tasks); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}
	if recs != nil {
		if err := w.Activity.Load(recs); err != nil {
			return fmt.Errorf("loading activity: %w", err)
		}
	}

	if err := w.Notifications.Load(ctx); err != nil {
		w.log.Warn("notifications unavailable", zap.Error(err))
	}

	w.log.Debug("workspace hydrated",
		zap.Int("users", len(users)),
		zap.Int("projects", len(projects)),
		zap.Int("tasks", len(tasks)))
	return nil
}

// Authenticate verifies credentials with the backend and records the login.
func (w *Workspace) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	u, err := w.backend.Authenticate(ctx, email, password)
	if err != nil {
		return model.User{}, source.Wrap(source.OpAuthenticate, err)
	}
	w.Activity.Record(ctx, u.Name, "logged in", u.Email)
	return u, nil
}

// UserByEmail looks a user up in the local collection.
func (w *Workspace) UserByEmail(email string) (model.User, bool) {
	key := model.User{Email: email}.EmailKey()
	return w.Users.Find(func(u model.User) bool { return u.EmailKey() == key })
}

// Board returns the kanban columns of one project, after filter and sort
// are applied inside each column.
func (w *Workspace) Board(projectID string, filter view.TaskFilter, sort view.Sort) view.Columns {
	filter.ProjectID = projectID
	if filter == (view.TaskFilter{ProjectID: projectID}) && sort == (view.Sort{}) {
		return w.memo.Board(w.Tasks, projectID, model.TaskStatuses)
	}
	tasks := w.memo.FilterAndSort(w.Tasks, filter, sort)
	return w.engine.KanbanColumns(tasks, model.TaskStatuses)
}

// ListTasks returns the tasks matching filter in the requested order.
func (w *Workspace) ListTasks(filter view.TaskFilter, sort view.Sort) []model.Task {
	return w.memo.FilterAndSort(w.Tasks, filter, sort)
}

// VisibleProjects returns the projects user may see.
func (w *Workspace) VisibleProjects(user model.User, assignedToMe bool) []model.Project {
	return w.engine.ScopedProjects(w.Projects.GetAll(), user, assignedToMe)
}

// UnreadCount returns the number of unread notifications.
func (w *Workspace) UnreadCount() int {
	return w.Notifications.UnreadCount()
}

// RecentActivity returns up to n records, most recent first.
func (w *Workspace) RecentActivity(n int) []model.ActivityRecord {
	return w.Activity.Recent(n)
}
