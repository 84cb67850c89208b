// Package httpapi is a source.Backend that talks to a taskhub server over
// its REST API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

// Adapter implements source.Backend over HTTP.
type Adapter struct {
	client *Client
}

// NewAdapter creates an adapter for the server at baseURL.
func NewAdapter(baseURL, token string, opts ...Option) *Adapter {
	return &Adapter{client: NewClient(baseURL, token, opts...)}
}

func itemPath(collection, id string) string {
	return "/api/" + collection + "/" + url.PathEscape(id)
}

// notFound maps a 404 on a single-item path to an entity.NotFoundError.
func notFound(kind, id string, err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return &entity.NotFoundError{Kind: kind, ID: id}
	}
	return err
}

func (a *Adapter) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	if err := a.client.Get(ctx, "/api/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) MarkNotificationRead(ctx context.Context, id string) error {
	err := a.client.Post(ctx, itemPath("notifications", id)+"/read", nil, nil)
	return notFound("notification", id, err)
}

func (a *Adapter) MarkAllNotificationsRead(ctx context.Context) error {
	return a.client.Post(ctx, "/api/notifications/read-all", nil, nil)
}

func (a *Adapter) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	var out model.Notification
	err := a.client.Post(ctx, "/api/notifications", n, &out)
	return out, err
}

func (a *Adapter) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := a.client.Get(ctx, "/api/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) CreateUser(ctx context.Context, u model.User, password string) (model.User, error) {
	var out model.User
	err := a.client.Post(ctx, "/api/users", CreateUserRequest{User: u, Password: password}, &out)
	return out, err
}

func (a *Adapter) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	var out model.User
	err := a.client.Put(ctx, itemPath("users", u.ID), u, &out)
	return out, notFound("user", u.ID, err)
}

func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	return notFound("user", id, a.client.Delete(ctx, itemPath("users", id)))
}

func (a *Adapter) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	var out model.User
	err := a.client.Post(ctx, "/api/auth/login", LoginRequest{Email: email, Password: password}, &out)
	return out, err
}

func (a *Adapter) ListProjects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	if err := a.client.Get(ctx, "/api/projects", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	var out model.Project
	err := a.client.Post(ctx, "/api/projects", p, &out)
	return out, err
}

func (a *Adapter) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	var out model.Project
	err := a.client.Put(ctx, itemPath("projects", p.ID), p, &out)
	return out, notFound("project", p.ID, err)
}

func (a *Adapter) DeleteProject(ctx context.Context, id string) error {
	return notFound("project", id, a.client.Delete(ctx, itemPath("projects", id)))
}

func (a *Adapter) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out []model.Task
	if err := a.client.Get(ctx, "/api/tasks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	var out model.Task
	err := a.client.Post(ctx, "/api/tasks", t, &out)
	return out, err
}

func (a *Adapter) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	var out model.Task
	err := a.client.Put(ctx, itemPath("tasks", t.ID), t, &out)
	return out, notFound("task", t.ID, err)
}

func (a *Adapter) DeleteTask(ctx context.Context, id string) error {
	return notFound("task", id, a.client.Delete(ctx, itemPath("tasks", id)))
}

func (a *Adapter) AppendActivity(ctx context.Context, rec model.ActivityRecord) error {
	return a.client.Post(ctx, "/api/activity", rec, nil)
}

var (
	_ source.Backend            = (*Adapter)(nil)
	_ source.NotificationWriter = (*Adapter)(nil)
	_ source.ActivitySink       = (*Adapter)(nil)
)
