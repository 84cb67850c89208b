package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/notify"
	"github.com/nhle/taskhub/internal/policy"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/view"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.w.CreateProject(ctx, f.admin, model.Project{Title: "Hermes", Members: []string{bobID}})
	require.NoError(t, err)
	assert.Equal(t, "3", p.ID)
	assert.Equal(t, adminID, p.ManagerID, "creator manages by default")
	assert.Equal(t, []string{bobID, adminID}, p.Members)

	got, err := f.w.Projects.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hermes", got.Title)
	noProvisional(t, f.w.Projects)

	recent := f.w.RecentActivity(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "Ada", recent[0].User)
	assert.Equal(t, "created project", recent[0].Action)
	assert.Equal(t, "Hermes", recent[0].Target)
}

func TestCreateProject_ShownBeforeConfirmation(t *testing.T) {
	f := newFixture(t)

	var seen []model.Project
	f.b.OnCall(source.OpCreateProject, func(context.Context) error {
		seen = f.w.Projects.GetAll()
		return nil
	})

	_, err := f.w.CreateProject(context.Background(), f.pm, model.Project{Title: "Hermes"})
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.True(t, IsProvisional(seen[2].ID))
	assert.Equal(t, "Hermes", seen[2].Title)
}

func TestCreateProject_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.w.CreateProject(context.Background(), f.admin, model.Project{Title: "  "})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
	assert.Equal(t, 2, f.w.Projects.Len())
}

func TestCreateProject_BackendFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.b.Fail(source.OpCreateProject, errDown)
	rev := f.w.Projects.Revision()

	_, err := f.w.CreateProject(context.Background(), f.admin, model.Project{Title: "Hermes"})
	require.Error(t, err)
	assert.True(t, source.IsExternal(err))
	assert.ErrorIs(t, err, errDown)

	assert.Equal(t, 2, f.w.Projects.Len())
	assert.Greater(t, f.w.Projects.Revision(), rev, "optimistic insert and rollback both happened")
	noProvisional(t, f.w.Projects)
	assert.Zero(t, f.w.Activity.Len())

	entries := f.logs.FilterMessage("backend rejected change, local change reverted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, source.OpCreateProject, entries[0].ContextMap()["op"])
}

func TestUpdateProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.w.Projects.Get(zeusID)
	require.NoError(t, err)
	p.Title = "Zeus II"
	p.Progress = 30

	got, err := f.w.UpdateProject(ctx, f.pm, p)
	require.NoError(t, err)
	assert.Equal(t, "Zeus II", got.Title)

	remote, err := f.b.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Zeus II", remote[1].Title)
}

func TestUpdateProject_FailureRestoresPrevious(t *testing.T) {
	f := newFixture(t)
	f.b.Fail(source.OpUpdateProject, errDown)

	p, err := f.w.Projects.Get(apolloID)
	require.NoError(t, err)
	p.Title = "Renamed"

	_, err = f.w.UpdateProject(context.Background(), f.admin, p)
	require.Error(t, err)

	got, err := f.w.Projects.Get(apolloID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", got.Title)
}

func TestUpdateProject_UnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.w.UpdateProject(context.Background(), f.admin, model.Project{ID: "404", Title: "x", Members: []string{adminID}})
	assert.True(t, entity.IsNotFound(err))
}

func TestDeleteProject_DropsTasksLocally(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.w.DeleteProject(context.Background(), f.pm, apolloID))

	assert.Equal(t, 1, f.w.Projects.Len())
	tasks := f.w.Tasks.GetAll()
	require.Len(t, tasks, 1)
	assert.Equal(t, zeusID, tasks[0].ProjectID)
}

func TestDeleteProject_FailureRestoresProjectAndTasks(t *testing.T) {
	f := newFixture(t)
	f.b.Fail(source.OpDeleteProject, errDown)

	err := f.w.DeleteProject(context.Background(), f.admin, apolloID)
	require.Error(t, err)
	assert.True(t, source.IsExternal(err))

	assert.Equal(t, []string{apolloID, zeusID}, recordIDs(f.w.Projects.GetAll()))
	assert.Equal(t, []string{"1", "2", "3", "4"}, recordIDs(f.w.Tasks.GetAll()))
}

func TestDeleteTask_FailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.b.Fail(source.OpDeleteTask, errDown)
	ctx := context.Background()
	board := f.w.Board(apolloID, view.TaskFilter{}, view.Sort{})

	for _, id := range []string{"1", "3", "4"} {
		require.Error(t, f.w.DeleteTask(ctx, f.pm, id))
		assert.Equal(t, []string{"1", "2", "3", "4"}, recordIDs(f.w.Tasks.GetAll()), "after failed delete of %s", id)
	}
	assert.Equal(t, board, f.w.Board(apolloID, view.TaskFilter{}, view.Sort{}))
}

func recordIDs[T entity.Record[T]](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.GetID()
	}
	return out
}

func TestCreateTask_AssignmentNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.w.CreateTask(ctx, f.pm, model.Task{ProjectID: apolloID, Title: "Review", AssigneeID: bobID})
	require.NoError(t, err)
	assert.Equal(t, "5", task.ID)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.StatusBacklog, task.Status)
	noProvisional(t, f.w.Tasks)

	assert.Equal(t, 2, f.w.UnreadCount())
	newest := f.w.Notifications.Notifications()[0]
	assert.Equal(t, "Pam", newest.Actor)
	assert.Equal(t, `assigned "Review" to Bob`, newest.Verb)
	assert.Equal(t, "task:5", newest.RelatedObjectRef)
	assert.Equal(t, "/tasks/5", newest.Link)

	stored, err := f.b.FetchNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "backend keeps the notification too")

	require.NoError(t, f.w.Notifications.Load(ctx))
	assert.Equal(t, 2, f.w.UnreadCount(), "a reload keeps it once")
	for _, n := range f.w.Notifications.Notifications() {
		assert.False(t, notify.IsLocal(n.ID))
	}
}

func TestCreateTask_NotificationWriteFailureStillShowsLocally(t *testing.T) {
	f := newFixture(t)
	f.b.Fail(source.OpCreateNotification, errDown)

	_, err := f.w.CreateTask(context.Background(), f.pm, model.Task{ProjectID: apolloID, Title: "Review", AssigneeID: bobID})
	require.NoError(t, err)
	assert.Equal(t, 2, f.w.UnreadCount())
	assert.Equal(t, 1, f.logs.FilterMessage("storing assignment notification").Len())
}

func TestCreateTask_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.w.CreateTask(ctx, f.pm, model.Task{ProjectID: "404", Title: "Lost"})
	assert.True(t, entity.IsNotFound(err), "unknown project")

	_, err = f.w.CreateTask(ctx, f.bob, model.Task{ProjectID: apolloID, Title: "Mine"})
	assert.True(t, policy.IsPermissionError(err), "members may not create tasks")

	_, err = f.w.CreateTask(ctx, f.pm, model.Task{ProjectID: zeusID, Title: "Help", AssigneeID: bobID})
	assert.True(t, model.IsValidationError(err), "assignee must be on the project")

	_, err = f.w.CreateTask(ctx, f.pm, model.Task{ProjectID: apolloID, Title: "Odd", Priority: "urgent"})
	assert.True(t, model.IsValidationError(err))

	assert.Equal(t, 4, f.w.Tasks.Len())
	assert.Equal(t, 4, f.b.Calls(source.OpCreateTask), "only the fixture's calls")
}

func TestUpdateTask_ReassignmentNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.w.Tasks.Get("3")
	require.NoError(t, err)
	task.AssigneeID = bobID
	_, err = f.w.UpdateTask(ctx, f.pm, task)
	require.NoError(t, err)
	assert.Equal(t, 2, f.w.UnreadCount())

	task.Description = "ship it"
	_, err = f.w.UpdateTask(ctx, f.pm, task)
	require.NoError(t, err)
	assert.Equal(t, 2, f.w.UnreadCount(), "same assignee, no new notification")
}

func TestUpdateTask_MoveBetweenProjects(t *testing.T) {
	f := newFixture(t)

	task, err := f.w.Tasks.Get("4")
	require.NoError(t, err)
	task.ProjectID = apolloID

	got, err := f.w.UpdateTask(context.Background(), f.pm, task)
	require.NoError(t, err)
	assert.Equal(t, apolloID, got.ProjectID)
	assert.Len(t, f.w.Board(apolloID, view.TaskFilter{}, view.Sort{})[model.StatusBacklog], 2)
}

func TestMoveTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.w.MoveTask(ctx, f.bob, "2", model.StatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, got.Status)

	_, err = f.w.MoveTask(ctx, f.bob, "4", model.StatusDone)
	assert.True(t, policy.IsPermissionError(err), "bob is not on Zeus")

	_, err = f.w.MoveTask(ctx, f.viewer, "2", model.StatusDone)
	assert.True(t, policy.IsPermissionError(err))

	_, err = f.w.MoveTask(ctx, f.pm, "2", "archived")
	assert.True(t, model.IsValidationError(err))

	_, err = f.w.MoveTask(ctx, f.pm, "404", model.StatusDone)
	assert.True(t, entity.IsNotFound(err))
}

func TestMoveTask_SameStatusIsNoop(t *testing.T) {
	f := newFixture(t)

	_, err := f.w.MoveTask(context.Background(), f.pm, "1", model.StatusDone)
	require.NoError(t, err)
	assert.Zero(t, f.b.Calls(source.OpUpdateTask))
}

func TestMoveTask_FailureRollsBack(t *testing.T) {
	f := newFixture(t)

	var during model.TaskStatus
	f.b.OnCall(source.OpUpdateTask, func(context.Context) error {
		cur, _ := f.w.Tasks.Get("3")
		during = cur.Status
		return nil
	})
	f.b.Fail(source.OpUpdateTask, errDown)

	_, err := f.w.MoveTask(context.Background(), f.bob, "3", model.StatusInProgress)
	require.Error(t, err)
	assert.True(t, source.IsExternal(err))
	assert.Equal(t, model.StatusInProgress, during, "moved locally while the backend was called")

	got, err := f.w.Tasks.Get("3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBacklog, got.Status)
	assert.Empty(t, f.b.Activity())
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.w.DeleteTask(ctx, f.bob, "1")
	assert.True(t, policy.IsPermissionError(err))

	require.NoError(t, f.w.DeleteTask(ctx, f.pm, "1"))
	_, err = f.w.Tasks.Get("1")
	assert.True(t, entity.IsNotFound(err))

	f.b.Fail(source.OpDeleteTask, errDown)
	require.Error(t, f.w.DeleteTask(ctx, f.pm, "2"))
	_, err = f.w.Tasks.Get("2")
	assert.NoError(t, err, "restored after failure")
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.w.CreateUser(ctx, f.admin, model.User{Name: "Cy", Email: "cy@example.com"}, "pw")
	require.NoError(t, err)
	assert.Equal(t, "5", u.ID)
	assert.Equal(t, model.RoleViewer, u.Role)
	assert.Equal(t, model.UserActive, u.Status)
	assert.Empty(t, u.PasswordHash)

	logged, err := f.w.Authenticate(ctx, "cy@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
}

func TestCreateUser_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.b.Calls(source.OpCreateUser)

	_, err := f.w.CreateUser(ctx, f.pm, model.User{Name: "Cy", Email: "cy@example.com"}, "pw")
	assert.True(t, policy.IsPermissionError(err))

	_, err = f.w.CreateUser(ctx, f.admin, model.User{Name: "Bob 2", Email: "BOB@example.com"}, "pw")
	assert.True(t, entity.IsDuplicateKey(err))

	_, err = f.w.CreateUser(ctx, f.admin, model.User{Name: "Cy", Email: "not-an-email"}, "pw")
	assert.True(t, model.IsValidationError(err))

	_, err = f.w.CreateUser(ctx, f.admin, model.User{Name: "Cy", Email: "cy@example.com"}, "")
	assert.True(t, model.IsValidationError(err))

	assert.Equal(t, before, f.b.Calls(source.OpCreateUser))
	assert.Equal(t, 4, f.w.Users.Len())
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bob := f.bob
	bob.Role = model.RoleProjectManager
	got, err := f.w.UpdateUser(ctx, f.admin, bob)
	require.NoError(t, err)
	assert.Equal(t, model.RoleProjectManager, got.Role)

	_, err = f.w.UpdateUser(ctx, f.bob, f.viewer)
	assert.True(t, policy.IsPermissionError(err))

	vic := f.viewer
	vic.Email = "bob@example.com"
	_, err = f.w.UpdateUser(ctx, f.admin, vic)
	assert.True(t, entity.IsDuplicateKey(err))
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.w.DeleteUser(ctx, f.admin, adminID)
	assert.True(t, model.IsValidationError(err), "cannot delete yourself")

	err = f.w.DeleteUser(ctx, f.pm, viewerID)
	assert.True(t, policy.IsPermissionError(err))

	require.NoError(t, f.w.DeleteUser(ctx, f.admin, bobID))
	_, err = f.w.Users.Get(bobID)
	assert.True(t, entity.IsNotFound(err))

	build, err := f.w.Tasks.Get("2")
	require.NoError(t, err)
	assert.Empty(t, build.AssigneeID)

	apollo, err := f.w.Projects.Get(apolloID)
	require.NoError(t, err)
	assert.Equal(t, []string{pmID}, apollo.Members)

	require.NoError(t, f.w.Hydrate(ctx))
	apollo, err = f.w.Projects.Get(apolloID)
	require.NoError(t, err)
	assert.Equal(t, []string{pmID}, apollo.Members, "backend agrees")
}

func TestDeleteUser_SoleMemberRefused(t *testing.T) {
	f := newFixture(t)

	err := f.w.DeleteUser(context.Background(), f.admin, pmID)
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
	assert.Contains(t, err.Error(), `"Zeus"`)
}
