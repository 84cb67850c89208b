package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

func init() {
	source.PasswordCost = bcrypt.MinCost
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	b := New()
	boom := errors.New("boom")

	b.FailOnce(source.OpFetchNotifications, boom)
	_, err := b.FetchNotifications(ctx)
	assert.ErrorIs(t, err, boom)

	_, err = b.FetchNotifications(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, b.Calls(source.OpFetchNotifications))

	b.Fail(source.OpListTasks, boom)
	_, err = b.ListTasks(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = b.ListTasks(ctx)
	assert.ErrorIs(t, err, boom)

	b.Reset()
	_, err = b.ListTasks(ctx)
	assert.NoError(t, err)
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	b := New()

	n1, err := b.CreateNotification(ctx, model.Notification{Actor: "Ana", Verb: "assigned you to"})
	require.NoError(t, err)
	_, err = b.CreateNotification(ctx, model.Notification{Actor: "Bo", Verb: "commented on"})
	require.NoError(t, err)
	assert.False(t, n1.Timestamp.IsZero())

	require.NoError(t, b.MarkNotificationRead(ctx, n1.ID))
	all, _ := b.FetchNotifications(ctx)
	assert.True(t, all[0].IsRead)
	assert.False(t, all[1].IsRead)

	require.NoError(t, b.MarkAllNotificationsRead(ctx))
	all, _ = b.FetchNotifications(ctx)
	for _, n := range all {
		assert.True(t, n.IsRead)
	}

	assert.True(t, entity.IsNotFound(b.MarkNotificationRead(ctx, "nope")))
}

func TestUsersAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.SetClock(func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) })

	u, err := b.CreateUser(ctx, model.User{
		Name: "Ana", Email: "ana@example.com", Role: model.RoleMember, Status: model.UserActive,
	}, "pw")
	require.NoError(t, err)
	assert.Empty(t, u.PasswordHash, "returned users never carry the hash")
	assert.Equal(t, 2026, u.CreatedAt.Year())

	_, err = b.CreateUser(ctx, model.User{Name: "Dup", Email: "ANA@example.com"}, "pw")
	assert.True(t, entity.IsDuplicateKey(err))

	got, err := b.Authenticate(ctx, "Ana@Example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = b.Authenticate(ctx, "ana@example.com", "nope")
	assert.True(t, source.IsAuthError(err))

	u.Name = "Ana B"
	_, err = b.UpdateUser(ctx, u)
	require.NoError(t, err)
	_, err = b.Authenticate(ctx, "ana@example.com", "pw")
	assert.NoError(t, err, "update keeps the stored hash")

	users, _ := b.ListUsers(ctx)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].PasswordHash)
}

func TestDeleteProjectCascadesTasks(t *testing.T) {
	ctx := context.Background()
	b := New()

	p, err := b.CreateProject(ctx, model.Project{Title: "P", Members: []string{"1"}})
	require.NoError(t, err)
	_, err = b.CreateTask(ctx, model.Task{ProjectID: p.ID, Title: "a"})
	require.NoError(t, err)
	_, err = b.CreateTask(ctx, model.Task{ProjectID: "other", Title: "b"})
	require.NoError(t, err)

	require.NoError(t, b.DeleteProject(ctx, p.ID))
	tasks, _ := b.ListTasks(ctx)
	require.Len(t, tasks, 1)
	assert.Equal(t, "b", tasks[0].Title)
}

func TestHookSeesContext(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.ListProjects(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
