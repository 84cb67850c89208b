// Package source defines the external collaborators the workspace talks
// to: the notification API and the user, project and task backends.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/taskhub/internal/model"
)

// Kind identifies a backend implementation.
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindHTTP   Kind = "http"
	KindMemory Kind = "memory"
	KindEmail  Kind = "email"
)

// Operation names used in ExternalCallError.Op.
const (
	OpFetchNotifications       = "fetchNotifications"
	OpMarkNotificationRead     = "markNotificationRead"
	OpMarkAllNotificationsRead = "markAllNotificationsRead"
	OpCreateNotification       = "createNotification"
	OpListUsers                = "listUsers"
	OpCreateUser               = "createUser"
	OpUpdateUser               = "updateUser"
	OpDeleteUser               = "deleteUser"
	OpListProjects             = "listProjects"
	OpCreateProject            = "createProject"
	OpUpdateProject            = "updateProject"
	OpDeleteProject            = "deleteProject"
	OpListTasks                = "listTasks"
	OpCreateTask               = "createTask"
	OpUpdateTask               = "updateTask"
	OpDeleteTask               = "deleteTask"
	OpAuthenticate             = "authenticate"
	OpAppendActivity           = "appendActivity"
	OpListActivity             = "listActivity"
)

// AuthError indicates that authentication has failed or expired for a source.
// It is returned by clients when a 401 response is received or a login
// is rejected.
type AuthError struct {
	Kind    Kind
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Kind, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ExternalCallError wraps a failure of an external collaborator. Op names
// the operation that failed ("fetchNotifications", "updateTask").
type ExternalCallError struct {
	Op  string
	Err error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external call %s failed: %v", e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

// IsExternal reports whether err (or any error in its chain) is an ExternalCallError.
func IsExternal(err error) bool {
	var ext *ExternalCallError
	return errors.As(err, &ext)
}

// Wrap returns err as an *ExternalCallError for op, or nil if err is nil.
// An error that already is one is returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ext *ExternalCallError
	if errors.As(err, &ext) {
		return err
	}
	return &ExternalCallError{Op: op, Err: err}
}

// NotificationSource is the remote notification API.
type NotificationSource interface {
	FetchNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// NotificationWriter is implemented by backends that can store locally
// generated notifications (task assignment alerts).
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
}

// UserSource persists user accounts. CreateUser receives the plain
// password; implementations store only a hash of it.
type UserSource interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, u model.User, password string) (model.User, error)
	UpdateUser(ctx context.Context, u model.User) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ProjectSource persists projects and their member lists.
type ProjectSource interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// TaskSource persists tasks.
type TaskSource interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Authenticator verifies a user's credentials and returns the account
// without its password hash. A rejected login is an *AuthError.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (model.User, error)
}

// Backend is the full set of collaborators the workspace needs.
type Backend interface {
	NotificationSource
	UserSource
	ProjectSource
	TaskSource
	Authenticator
}

// ActivitySink persists activity records.
type ActivitySink interface {
	AppendActivity(ctx context.Context, rec model.ActivityRecord) error
}
