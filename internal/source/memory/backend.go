// Package memory is an in-process source.Backend. It backs the "memory"
// backend kind and doubles as a fake in tests, where individual
// operations can be made to fail or block.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

// Hook runs before the named operation. A non-nil error is returned from
// the operation instead of performing it.
type Hook func(ctx context.Context) error

// Backend keeps every collection in entity stores.
type Backend struct {
	users         *entity.Store[model.User]
	projects      *entity.Store[model.Project]
	tasks         *entity.Store[model.Task]
	notifications *entity.Store[model.Notification]

	mu       sync.Mutex
	hooks    map[string][]Hook
	calls    map[string]int
	activity []model.ActivityRecord
	now      func() time.Time
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		users: entity.New(entity.Config[model.User]{
			Kind: "user",
			Unique: []entity.Index[model.User]{{
				Name: "email",
				Key:  model.User.EmailKey,
			}},
		}),
		projects:      entity.New(entity.Config[model.Project]{Kind: "project"}),
		tasks:         entity.New(entity.Config[model.Task]{Kind: "task"}),
		notifications: entity.New(entity.Config[model.Notification]{Kind: "notification"}),
		hooks:         make(map[string][]Hook),
		calls:         make(map[string]int),
		now:           time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Fail makes every subsequent call of op return err.
func (b *Backend) Fail(op string, err error) {
	b.OnCall(op, func(context.Context) error { return err })
}

// FailOnce makes the next call of op return err.
func (b *Backend) FailOnce(op string, err error) {
	var once sync.Once
	b.OnCall(op, func(context.Context) error {
		var out error
		once.Do(func() { out = err })
		return out
	})
}

// OnCall registers a hook for op. Hooks run in registration order; the
// first error wins.
func (b *Backend) OnCall(op string, h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[op] = append(b.hooks[op], h)
}

// Reset removes all hooks.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = make(map[string][]Hook)
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Activity returns the records received through AppendActivity.
func (b *Backend) Activity() []model.ActivityRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.activity)
}

func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	hooks := slices.Clone(b.hooks[op])
	b.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (b *Backend) clock() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().UTC()
}

// Notifications.

func (b *Backend) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	if err := b.enter(ctx, source.OpFetchNotifications); err != nil {
		return nil, err
	}
	return b.notifications.GetAll(), nil
}

func (b *Backend) MarkNotificationRead(ctx context.Context, id string) error {
	if err := b.enter(ctx, source.OpMarkNotificationRead); err != nil {
		return err
	}
	_, err := b.notifications.Update(id, func(n *model.Notification) { n.IsRead = true })
	return err
}

func (b *Backend) MarkAllNotificationsRead(ctx context.Context) error {
	if err := b.enter(ctx, source.OpMarkAllNotificationsRead); err != nil {
		return err
	}
	var ids []string
	for _, n := range b.notifications.GetAll() {
		if !n.IsRead {
			ids = append(ids, n.ID)
		}
	}
	_, err := b.notifications.UpdateMany(ids, func(n *model.Notification) { n.IsRead = true })
	return err
}

func (b *Backend) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if err := b.enter(ctx, source.OpCreateNotification); err != nil {
		return model.Notification{}, err
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = b.clock()
	}
	id, err := b.notifications.Create(n)
	if err != nil {
		return model.Notification{}, err
	}
	return b.notifications.Get(id)
}

// Users.

func (b *Backend) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := b.enter(ctx, source.OpListUsers); err != nil {
		return nil, err
	}
	users := b.users.GetAll()
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

func (b *Backend) CreateUser(ctx context.Context, u model.User, password string) (model.User, error) {
	if err := b.enter(ctx, source.OpCreateUser); err != nil {
		return model.User{}, err
	}
	hash, err := source.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}
	now := b.clock()
	u.PasswordHash = hash
	u.CreatedAt, u.UpdatedAt = now, now
	id, err := b.users.Create(u)
	if err != nil {
		return model.User{}, err
	}
	got, err := b.users.Get(id)
	return got.Public(), err
}

func (b *Backend) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	if err := b.enter(ctx, source.OpUpdateUser); err != nil {
		return model.User{}, err
	}
	now := b.clock()
	got, err := b.users.Update(u.ID, func(cur *model.User) {
		hash := cur.PasswordHash
		created := cur.CreatedAt
		*cur = u
		cur.PasswordHash = hash
		cur.CreatedAt = created
		cur.UpdatedAt = now
	})
	return got.Public(), err
}

func (b *Backend) DeleteUser(ctx context.Context, id string) error {
	if err := b.enter(ctx, source.OpDeleteUser); err != nil {
		return err
	}
	if err := b.users.Remove(id); err != nil {
		return err
	}
	for _, t := range b.tasks.GetAll() {
		if t.AssigneeID == id {
			_, _ = b.tasks.Update(t.ID, func(t *model.Task) { t.AssigneeID = "" })
		}
	}
	for _, p := range b.projects.GetAll() {
		if !p.Involves(id) {
			continue
		}
		_, _ = b.projects.Update(p.ID, func(p *model.Project) {
			if p.ManagerID == id {
				p.ManagerID = ""
			}
			p.Members = slices.DeleteFunc(p.Members, func(m string) bool { return m == id })
		})
	}
	return nil
}

func (b *Backend) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	if err := b.enter(ctx, source.OpAuthenticate); err != nil {
		return model.User{}, err
	}
	key := model.User{Email: email}.EmailKey()
	u, ok := b.users.Find(func(u model.User) bool { return u.EmailKey() == key })
	if !ok || u.Status != model.UserActive || !source.CheckPassword(u.PasswordHash, password) {
		return model.User{}, &source.AuthError{Kind: source.KindMemory, Message: "invalid email or password"}
	}
	return u.Public(), nil
}

// Projects.

func (b *Backend) ListProjects(ctx context.Context) ([]model.Project, error) {
	if err := b.enter(ctx, source.OpListProjects); err != nil {
		return nil, err
	}
	return b.projects.GetAll(), nil
}

func (b *Backend) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if err := b.enter(ctx, source.OpCreateProject); err != nil {
		return model.Project{}, err
	}
	now := b.clock()
	p.CreatedAt, p.UpdatedAt = now, now
	id, err := b.projects.Create(p)
	if err != nil {
		return model.Project{}, err
	}
	return b.projects.Get(id)
}

func (b *Backend) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if err := b.enter(ctx, source.OpUpdateProject); err != nil {
		return model.Project{}, err
	}
	now := b.clock()
	return b.projects.Update(p.ID, func(cur *model.Project) {
		created := cur.CreatedAt
		*cur = p.Clone()
		cur.CreatedAt = created
		cur.UpdatedAt = now
	})
}

func (b *Backend) DeleteProject(ctx context.Context, id string) error {
	if err := b.enter(ctx, source.OpDeleteProject); err != nil {
		return err
	}
	if err := b.projects.Remove(id); err != nil {
		return err
	}
	for _, t := range b.tasks.GetAll() {
		if t.ProjectID == id {
			_ = b.tasks.Remove(t.ID)
		}
	}
	return nil
}

// Tasks.

func (b *Backend) ListTasks(ctx context.Context) ([]model.Task, error) {
	if err := b.enter(ctx, source.OpListTasks); err != nil {
		return nil, err
	}
	return b.tasks.GetAll(), nil
}

func (b *Backend) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := b.enter(ctx, source.OpCreateTask); err != nil {
		return model.Task{}, err
	}
	now := b.clock()
	t.CreatedAt, t.UpdatedAt = now, now
	id, err := b.tasks.Create(t)
	if err != nil {
		return model.Task{}, err
	}
	return b.tasks.Get(id)
}

func (b *Backend) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := b.enter(ctx, source.OpUpdateTask); err != nil {
		return model.Task{}, err
	}
	now := b.clock()
	return b.tasks.Update(t.ID, func(cur *model.Task) {
		created := cur.CreatedAt
		*cur = t.Clone()
		cur.CreatedAt = created
		cur.UpdatedAt = now
	})
}

func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	if err := b.enter(ctx, source.OpDeleteTask); err != nil {
		return err
	}
	return b.tasks.Remove(id)
}

// AppendActivity stores rec.
func (b *Backend) AppendActivity(ctx context.Context, rec model.ActivityRecord) error {
	if err := b.enter(ctx, source.OpAppendActivity); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activity = append(b.activity, rec)
	return nil
}

var (
	_ source.Backend            = (*Backend)(nil)
	_ source.NotificationWriter = (*Backend)(nil)
	_ source.ActivitySink       = (*Backend)(nil)
)
