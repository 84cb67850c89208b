package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/source/memory"
	"github.com/nhle/taskhub/internal/testutil"
	"github.com/nhle/taskhub/internal/ui/board"
	"github.com/nhle/taskhub/internal/ui/command"
	"github.com/nhle/taskhub/internal/ui/detail"
	"github.com/nhle/taskhub/internal/ui/inbox"
	"github.com/nhle/taskhub/internal/ui/projectmgr"
	"github.com/nhle/taskhub/internal/ui/taskform"
	"github.com/nhle/taskhub/internal/ui/usermgr"
	"github.com/nhle/taskhub/internal/workspace"
)

type fixture struct {
	b     *memory.Backend
	ws    *workspace.Workspace
	admin model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testutil.FastPasswords(t)
	ctx := context.Background()

	b := memory.New()
	admin, err := b.CreateUser(ctx, model.User{Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin, Status: model.UserActive}, "pw")
	require.NoError(t, err)
	_, err = b.CreateProject(ctx, model.Project{Title: "Apollo", Status: model.ProjectInProgress, ManagerID: admin.ID, Members: []string{admin.ID}})
	require.NoError(t, err)
	_, err = b.CreateProject(ctx, model.Project{Title: "Zeus", Status: model.ProjectPlanning, ManagerID: admin.ID, Members: []string{admin.ID}})
	require.NoError(t, err)
	_, err = b.CreateTask(ctx, model.Task{ProjectID: "1", Title: "Design", Priority: model.PriorityHigh, Status: model.StatusBacklog})
	require.NoError(t, err)
	_, err = b.CreateNotification(ctx, model.Notification{Actor: "Pam", Verb: "assigned you to", RelatedObjectRef: model.ObjectRef("task", "1"), Timestamp: testutil.Epoch})
	require.NoError(t, err)

	ws := workspace.New(b, workspace.WithClock(testutil.Clock()))
	require.NoError(t, ws.Hydrate(ctx))
	return &fixture{b: b, ws: ws, admin: admin}
}

// drain runs cmd and feeds the resulting messages back into m. Commands
// that do not return promptly, such as cursor blinks, are dropped.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd, 0) {
		updated, next := m.Update(msg)
		m = updated.(Model)
		m = drain(t, m, next)
	}
	return m
}

func collect(cmd tea.Cmd, depth int) []tea.Msg {
	if cmd == nil || depth > 4 {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(200 * time.Millisecond):
		return nil
	}

	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c, depth+1)...)
		}
		return out
	case opResultMsg, storeChangedMsg, board.ColumnsLoadedMsg, inbox.LoadedMsg,
		board.SelectedTaskMsg, board.MoveRequestMsg, board.DeleteRequestMsg,
		detail.BackMsg, inbox.BackMsg, inbox.MarkAllReadRequestMsg, inbox.MarkReadRequestMsg:
		return []tea.Msg{msg}
	}
	return nil
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	return drain(t, updated.(Model), cmd)
}

func press(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func started(t *testing.T, f *fixture) Model {
	t.Helper()
	m := New(f.ws, f.admin, nil)
	m = drain(t, m, m.Init())
	return send(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
}

func TestStartup_ShowsFirstProjectBoard(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	assert.Equal(t, ViewBoard, m.currentView)
	assert.Equal(t, "1", m.board.ProjectID())
	assert.Equal(t, 1, m.unreadCount)

	out := m.View()
	assert.Contains(t, out, "TaskHub · Apollo [1 new]")
	assert.Contains(t, out, "Design")
	assert.Contains(t, out, "Ada (admin)")
}

func TestNewKey_OpensCreateForm(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	updated, _ := m.Update(press("n"))
	m = updated.(Model)
	assert.Equal(t, ViewTaskCreate, m.currentView)
	assert.True(t, m.formView.Active())

	// Letters go to the form, not to global shortcuts.
	updated, _ = m.Update(press("q"))
	m = updated.(Model)
	assert.Equal(t, ViewTaskCreate, m.currentView)
}

func TestTaskCreated_PersistsAndReloads(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, taskform.TaskCreatedMsg{Task: model.Task{
		Title: "Ship", ProjectID: "1", Priority: model.PriorityLow, Status: model.StatusBacklog,
	}})

	assert.Equal(t, ViewBoard, m.currentView)
	assert.Empty(t, m.errMessage)
	_, ok := f.ws.Tasks.Find(func(t model.Task) bool { return t.Title == "Ship" })
	assert.True(t, ok)
	assert.Contains(t, m.View(), "Ship")
}

func TestMoveRequest_ChangesStatus(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, press("L"))

	got, err := f.ws.Tasks.Get("1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, model.StatusInProgress, m.board.FocusedStatus())
}

func TestFailedMutation_ShowsErrorAndRollsBack(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)
	f.b.Fail(source.OpUpdateTask, errors.New("backend down"))

	m = send(t, m, board.MoveRequestMsg{TaskID: "1", To: model.StatusDone})

	assert.Contains(t, m.errMessage, "move task failed")
	assert.Contains(t, m.View(), "backend down")
	got, err := f.ws.Tasks.Get("1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBacklog, got.Status)

	f.b.Reset()
	m = send(t, m, board.MoveRequestMsg{TaskID: "1", To: model.StatusDone})
	assert.Empty(t, m.errMessage)
}

func TestDetail_OpenAndBack(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, board.SelectedTaskMsg{TaskID: "1"})
	require.Equal(t, ViewDetail, m.currentView)
	assert.Equal(t, "1", m.detail.TaskID())
	assert.Contains(t, m.View(), "Apollo")
	assert.Contains(t, m.View(), "unassigned")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewBoard, m.currentView)
}

func TestDetail_ClosesWhenTaskDeleted(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)
	m = send(t, m, board.SelectedTaskMsg{TaskID: "1"})

	require.NoError(t, f.ws.DeleteTask(context.Background(), f.admin, "1"))
	m = send(t, m, storeChangedMsg{})

	assert.Equal(t, ViewBoard, m.currentView)
	assert.Empty(t, m.detail.TaskID())
}

func TestDetail_EditRequestOpensForm(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)
	m = send(t, m, board.SelectedTaskMsg{TaskID: "1"})

	task, err := f.ws.Tasks.Get("1")
	require.NoError(t, err)
	updated, _ := m.Update(detail.EditRequestMsg{Task: task})
	m = updated.(Model)
	assert.Equal(t, ViewTaskEdit, m.currentView)

	updated, _ = m.Update(taskform.CancelMsg{})
	m = updated.(Model)
	assert.Equal(t, ViewDetail, m.currentView)
}

func TestNotifications_MarkAllRead(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, press("i"))
	require.Equal(t, ViewNotifications, m.currentView)
	assert.Contains(t, m.View(), "assigned you to")

	m = send(t, m, press("X"))
	assert.Equal(t, 0, f.ws.UnreadCount())
	assert.Equal(t, 0, m.unreadCount)
	assert.Equal(t, 1, f.b.Calls(source.OpMarkAllNotificationsRead))

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewBoard, m.currentView)
}

func TestOpenRef(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, inbox.OpenRefMsg{Ref: "task:1"})
	assert.Equal(t, ViewDetail, m.currentView)

	m = send(t, m, inbox.OpenRefMsg{Ref: "project:2"})
	assert.Equal(t, ViewBoard, m.currentView)
	assert.Equal(t, "2", m.board.ProjectID())
}

func TestCycleProject(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, press("p"))
	assert.Equal(t, "2", m.board.ProjectID())
	m = send(t, m, press("p"))
	assert.Equal(t, "1", m.board.ProjectID())
}

func TestCommands(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, command.CommandMsg("project zeus"))
	assert.Equal(t, "2", m.board.ProjectID())

	m = send(t, m, command.CommandMsg("project nowhere"))
	assert.Contains(t, m.errMessage, "nowhere")

	m = send(t, m, command.CommandMsg("bogus"))
	assert.Contains(t, m.errMessage, "unknown command")

	m = send(t, m, command.CommandMsg("new project Hermes"))
	assert.Empty(t, m.errMessage)
	_, ok := f.ws.Projects.Find(func(p model.Project) bool { return p.Title == "Hermes" })
	assert.True(t, ok)

	_, cmd := m.Update(command.CommandMsg("quit"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestBoardFallsBackWhenProjectDeleted(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	require.NoError(t, f.ws.DeleteProject(context.Background(), f.admin, "1"))
	m = send(t, m, storeChangedMsg{})

	assert.Equal(t, "2", m.board.ProjectID())
}

func TestProjectManager(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, press("P"))
	require.Equal(t, ViewProjects, m.currentView)
	assert.Contains(t, m.View(), "Zeus")

	m = send(t, m, projectmgr.SaveRequestMsg{Project: model.Project{Title: "Hermes", Members: []string{f.admin.ID}}})
	assert.Empty(t, m.errMessage)
	hermes, ok := f.ws.Projects.Find(func(p model.Project) bool { return p.Title == "Hermes" })
	require.True(t, ok)

	hermes.Status = model.ProjectOnHold
	m = send(t, m, projectmgr.SaveRequestMsg{Project: hermes})
	got, err := f.ws.Projects.Get(hermes.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectOnHold, got.Status)

	m = send(t, m, projectmgr.OpenMsg{ProjectID: hermes.ID})
	assert.Equal(t, ViewBoard, m.currentView)
	assert.Equal(t, hermes.ID, m.board.ProjectID())

	m = send(t, m, projectmgr.DeleteRequestMsg{ProjectID: hermes.ID})
	_, err = f.ws.Projects.Get(hermes.ID)
	assert.Error(t, err)
	assert.Equal(t, "1", m.board.ProjectID())
}

func TestUserManager(t *testing.T) {
	f := newFixture(t)
	m := started(t, f)

	m = send(t, m, command.CommandMsg("users"))
	require.Equal(t, ViewUsers, m.currentView)

	m = send(t, m, usermgr.CreateRequestMsg{User: model.User{Name: "Mia", Email: "mia@example.com", Role: model.RoleMember}, Password: "pw"})
	assert.Empty(t, m.errMessage)
	mia, ok := f.ws.UserByEmail("mia@example.com")
	require.True(t, ok)
	assert.Contains(t, m.View(), "mia@example.com")

	mia.Role = model.RoleViewer
	m = send(t, m, usermgr.UpdateRequestMsg{User: mia})
	got, err := f.ws.Users.Get(mia.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, got.Role)

	m = send(t, m, usermgr.DeleteRequestMsg{UserID: mia.ID})
	_, ok = f.ws.UserByEmail("mia@example.com")
	assert.False(t, ok)

	m = send(t, m, usermgr.CloseMsg{})
	assert.Equal(t, ViewBoard, m.currentView)
}

func TestUserManager_AdminsOnly(t *testing.T) {
	f := newFixture(t)
	viewer, err := f.ws.CreateUser(context.Background(), f.admin, model.User{Name: "Vic", Email: "vic@example.com", Role: model.RoleViewer}, "pw")
	require.NoError(t, err)

	m := New(f.ws, viewer, nil)
	m = send(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
	m = send(t, m, press("U"))

	assert.Equal(t, ViewBoard, m.currentView)
	assert.Contains(t, m.errMessage, "only admins")
}
