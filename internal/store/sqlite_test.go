package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/store"
	"github.com/nhle/taskhub/internal/testutil"
)

func newUser(name, email string, role model.Role) model.User {
	return model.User{Name: name, Email: email, Role: role, Status: model.UserActive}
}

func TestMigrations_ApplyOnceAndReopen(t *testing.T) {
	testutil.FastPasswords(t)
	path := filepath.Join(t.TempDir(), "nested", "taskhub.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = s.CreateUser(context.Background(), newUser("Ada", "ada@example.com", model.RoleAdmin), "pw")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, err = s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUsers_CreateListAndHashHidden(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, newUser("Ada", "ada@example.com", model.RoleAdmin), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)
	assert.Empty(t, u.PasswordHash)
	assert.True(t, testutil.Epoch.Equal(u.CreatedAt))

	_, err = s.CreateUser(ctx, newUser("Bob", "bob@example.com", model.RoleMember), "pw")
	require.NoError(t, err)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ada", users[0].Name)
	assert.Equal(t, model.RoleMember, users[1].Role)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestUsers_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("Ada", "ada@example.com", model.RoleAdmin), "pw")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, newUser("Imposter", "ADA@example.com", model.RoleViewer), "pw")
	require.Error(t, err)
	assert.True(t, entity.IsDuplicateKey(err))
}

func TestUsers_InvalidAndEmptyPasswordRejected(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("", "x@example.com", model.RoleViewer), "pw")
	assert.True(t, model.IsValidationError(err))

	_, err = s.CreateUser(ctx, newUser("X", "x@example.com", model.RoleViewer), "")
	assert.Error(t, err)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUsers_UpdateKeepsPassword(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, newUser("Ada", "ada@example.com", model.RoleMember), "pw")
	require.NoError(t, err)

	u.Role = model.RoleProjectManager
	u.Name = "Ada L."
	got, err := s.UpdateUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, model.RoleProjectManager, got.Role)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	logged, err := s.Authenticate(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", logged.Name)

	_, err = s.UpdateUser(ctx, model.User{ID: "99", Name: "Ghost", Email: "g@example.com", Role: model.RoleViewer, Status: model.UserActive})
	assert.True(t, entity.IsNotFound(err))
}

func TestAuthenticate(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("Ada", "ada@example.com", model.RoleAdmin), "right")
	require.NoError(t, err)
	inactive := newUser("Old", "old@example.com", model.RoleMember)
	inactive.Status = model.UserInactive
	_, err = s.CreateUser(ctx, inactive, "right")
	require.NoError(t, err)

	u, err := s.Authenticate(ctx, "  ADA@example.com ", "right")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.Empty(t, u.PasswordHash)

	for _, tc := range []struct{ name, email, password string }{
		{"wrong password", "ada@example.com", "wrong"},
		{"unknown email", "nobody@example.com", "right"},
		{"inactive account", "old@example.com", "right"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Authenticate(ctx, tc.email, tc.password)
			require.Error(t, err)
			assert.True(t, source.IsAuthError(err))
			assert.Contains(t, err.Error(), "invalid email or password")
		})
	}
}

func TestProjects_MembersRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := s.CreateProject(ctx, model.Project{
		Title:     "Apollo",
		StartDate: start,
		EndDate:   start.AddDate(0, 3, 0),
		ManagerID: "7",
		Members:   []string{"3", "5", "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, []string{"3", "5", "7"}, p.Members)
	assert.Equal(t, model.ProjectPlanning, p.Status)
	assert.Equal(t, "7", p.ManagerID)
	assert.True(t, start.Equal(p.StartDate))

	p.Members = []string{"5"}
	p.ManagerID = ""
	p.Progress = 40
	got, err := s.UpdateProject(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, got.Members)
	assert.Empty(t, got.ManagerID)
	assert.Equal(t, 40, got.Progress)

	all, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"5"}, all[0].Members)
}

func TestProjects_ValidationAndNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateProject(ctx, model.Project{Title: "No members"})
	assert.True(t, model.IsValidationError(err))

	_, err = s.UpdateProject(ctx, model.Project{ID: "42", Title: "Ghost", Members: []string{"1"}})
	assert.True(t, entity.IsNotFound(err))

	err = s.DeleteProject(ctx, "42")
	assert.True(t, entity.IsNotFound(err))
}

func TestDeleteProject_CascadesTasks(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	keep, err := s.CreateProject(ctx, model.Project{Title: "Keep", Members: []string{"1"}})
	require.NoError(t, err)
	drop, err := s.CreateProject(ctx, model.Project{Title: "Drop", Members: []string{"1"}})
	require.NoError(t, err)

	for _, pid := range []string{keep.ID, drop.ID, drop.ID} {
		_, err := s.CreateTask(ctx, model.Task{ProjectID: pid, Title: "t", Priority: model.PriorityLow, Status: model.StatusBacklog})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteProject(ctx, drop.ID))

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, keep.ID, tasks[0].ProjectID)
}

func TestTasks_CRUD(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, model.Project{Title: "Apollo", Members: []string{"1"}})
	require.NoError(t, err)

	due := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	task, err := s.CreateTask(ctx, model.Task{
		ProjectID:  p.ID,
		Title:      "Write docs",
		Priority:   model.PriorityHigh,
		Status:     model.StatusBacklog,
		AssigneeID: "1",
		DueDate:    &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "1", task.ID)
	require.NotNil(t, task.DueDate)
	assert.True(t, due.Equal(*task.DueDate))

	task.Status = model.StatusInProgress
	task.DueDate = nil
	task.AssigneeID = ""
	got, err := s.UpdateTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Nil(t, got.DueDate)
	assert.Empty(t, got.AssigneeID)
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	assert.True(t, entity.IsNotFound(s.DeleteTask(ctx, task.ID)))

	_, err = s.GetTask(ctx, task.ID)
	assert.True(t, entity.IsNotFound(err))
}

func TestTasks_UnknownProject(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.CreateTask(context.Background(), model.Task{
		ProjectID: "404", Title: "Orphan", Priority: model.PriorityLow, Status: model.StatusBacklog,
	})
	require.Error(t, err)
	assert.True(t, entity.IsNotFound(err))
}

func TestDeleteUser_UnassignsAndRemovesMembership(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, newUser("Ada", "ada@example.com", model.RoleMember), "pw")
	require.NoError(t, err)
	p, err := s.CreateProject(ctx, model.Project{Title: "Apollo", ManagerID: u.ID, Members: []string{u.ID, "9"}})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, model.Task{ProjectID: p.ID, Title: "t", Priority: model.PriorityLow, Status: model.StatusBacklog, AssigneeID: u.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, got.Members)
	assert.Empty(t, got.ManagerID)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks[0].AssigneeID)

	assert.True(t, entity.IsNotFound(s.DeleteUser(ctx, u.ID)))
}

func TestNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := s.CreateNotification(ctx, model.Notification{Actor: "Ada", Verb: "assigned you", Timestamp: older})
	require.NoError(t, err)
	second, err := s.CreateNotification(ctx, model.Notification{Actor: "Bob", Verb: "commented", RelatedObjectRef: "task:3", Link: "/tasks/3"})
	require.NoError(t, err)
	assert.True(t, testutil.Epoch.Equal(second.Timestamp))

	ns, err := s.FetchNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, second.ID, ns[0].ID, "newest first")
	assert.Equal(t, "task:3", ns[0].RelatedObjectRef)
	assert.False(t, ns[0].IsRead)

	require.NoError(t, s.MarkNotificationRead(ctx, first.ID))
	require.NoError(t, s.MarkNotificationRead(ctx, first.ID), "marking twice succeeds")
	assert.True(t, entity.IsNotFound(s.MarkNotificationRead(ctx, "77")))

	ns, err = s.FetchNotifications(ctx)
	require.NoError(t, err)
	assert.False(t, ns[0].IsRead)
	assert.True(t, ns[1].IsRead)

	require.NoError(t, s.MarkAllNotificationsRead(ctx))
	ns, err = s.FetchNotifications(ctx)
	require.NoError(t, err)
	for _, n := range ns {
		assert.True(t, n.IsRead)
	}
}

func TestActivity_AppendAndList(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, action := range []string{"created project", "added task", "moved task"} {
		require.NoError(t, s.AppendActivity(ctx, model.ActivityRecord{
			ID:        action,
			User:      "Ada",
			Action:    action,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Same id again is ignored.
	require.NoError(t, s.AppendActivity(ctx, model.ActivityRecord{ID: "added task", User: "Eve", Action: "dup"}))
	require.NoError(t, s.AppendActivity(ctx, model.ActivityRecord{User: "Bob", Action: "logged in"}))

	recs, err := s.ListActivity(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "logged in", recs[0].Action)
	assert.NotEmpty(t, recs[0].ID)
	assert.Equal(t, "moved task", recs[1].Action)

	all, err := s.ListActivity(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
