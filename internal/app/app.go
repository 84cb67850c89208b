package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskhub/internal/crossref"
	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/notify"
	"github.com/nhle/taskhub/internal/policy"
	"github.com/nhle/taskhub/internal/ui"
	"github.com/nhle/taskhub/internal/ui/board"
	"github.com/nhle/taskhub/internal/ui/command"
	"github.com/nhle/taskhub/internal/ui/detail"
	helpview "github.com/nhle/taskhub/internal/ui/help"
	"github.com/nhle/taskhub/internal/ui/inbox"
	"github.com/nhle/taskhub/internal/ui/projectmgr"
	"github.com/nhle/taskhub/internal/ui/taskform"
	"github.com/nhle/taskhub/internal/ui/usermgr"
	"github.com/nhle/taskhub/internal/workspace"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewBoard ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewTaskCreate
	ViewTaskEdit
	ViewNotifications
	ViewProjects
	ViewUsers
)

// storeChangedMsg is sent whenever a workspace collection changes.
type storeChangedMsg struct{}

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the workspace.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ws           *workspace.Workspace
	actor        model.User
	keys         *keys.KeyMap
	board        board.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model
	formView     taskform.Model
	inboxView    inbox.Model
	projectView  projectmgr.Model
	userView     usermgr.Model
	poller       *notify.Poller
	projects     []model.Project
	ready        bool
	unreadCount  int
	errMessage   string
}

// New creates the root model for actor. poller may be nil.
func New(ws *workspace.Workspace, actor model.User, poller *notify.Poller) Model {
	k := keys.DefaultKeyMap()
	projects := ws.VisibleProjects(actor, false)
	projectID := ""
	if len(projects) > 0 {
		projectID = projects[0].ID
	}

	return Model{
		currentView: ViewBoard,
		ws:          ws,
		actor:       actor,
		keys:        k,
		board:       board.New(ws, k, projectID, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, actor.Role, 80, 24),
		commandView: command.New(80, 24),
		formView:    taskform.New(80, 24),
		inboxView:   inbox.New(ws.Notifications, k, 80, 24),
		projectView: projectmgr.New(k, 80, 24),
		userView:    usermgr.New(k, actor.ID, 80, 24),
		poller:      poller,
		projects:    projects,
		unreadCount: ws.UnreadCount(),
	}
}

// Init loads the board and the inbox.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.board.Init(), m.inboxView.Load())
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.board.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.formView.SetSize(w, h)
		m.inboxView.SetSize(w, h)
		m.projectView.SetSize(w, h)
		m.userView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case storeChangedMsg:
		return m, m.refresh()

	case opResultMsg:
		if msg.err != nil {
			m.errMessage = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
		} else {
			m.errMessage = ""
		}
		return m, m.refresh()

	case board.ColumnsLoadedMsg:
		var cmd tea.Cmd
		m.board, cmd = m.board.Update(msg)
		return m, cmd

	case inbox.LoadedMsg:
		m.unreadCount = msg.Unread
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, cmd

	case board.SelectedTaskMsg:
		m.openDetail(msg.TaskID)
		return m, nil

	case board.MoveRequestMsg:
		return m, m.moveTask(msg.TaskID, msg.To)

	case board.DeleteRequestMsg:
		return m, m.deleteTask(msg.TaskID)

	case detail.BackMsg:
		m.currentView = ViewBoard
		return m, nil

	case detail.EditRequestMsg:
		m.previousView = m.currentView
		m.currentView = ViewTaskEdit
		m.formView.SetOptions(m.projects, m.ws.Users.GetAll())
		return m, m.formView.StartEdit(msg.Task)

	case taskform.TaskCreatedMsg:
		m.currentView = ViewBoard
		return m, m.createTask(msg.Task)

	case taskform.TaskUpdatedMsg:
		m.currentView = m.previousView
		return m, m.updateTask(msg.Task)

	case taskform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case inbox.MarkReadRequestMsg:
		return m, m.markRead(msg.ID)

	case inbox.MarkAllReadRequestMsg:
		return m, m.markAllRead()

	case inbox.OpenRefMsg:
		return m, m.openRef(msg.Ref)

	case inbox.BackMsg:
		m.currentView = ViewBoard
		return m, nil

	case projectmgr.OpenMsg:
		m.currentView = ViewBoard
		return m, m.board.SetProject(msg.ProjectID)

	case projectmgr.SaveRequestMsg:
		return m, m.saveProject(msg.Project)

	case projectmgr.DeleteRequestMsg:
		return m, m.deleteProject(msg.ProjectID)

	case projectmgr.CloseMsg, usermgr.CloseMsg:
		m.currentView = ViewBoard
		return m, nil

	case usermgr.CreateRequestMsg:
		return m, m.createUser(msg.User, msg.Password)

	case usermgr.UpdateRequestMsg:
		return m, m.updateUser(msg.User)

	case usermgr.DeleteRequestMsg:
		return m, m.deleteUser(msg.UserID)

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if m.capturesInput() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			if msg.String() == "ctrl+c" || m.currentView == ViewBoard {
				m.stopPoller()
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewBoard || m.currentView == ViewNotifications {
				return m, m.reload()
			}

		case key.Matches(msg, m.keys.Notifications):
			if m.currentView == ViewBoard {
				m.previousView = m.currentView
				m.currentView = ViewNotifications
				return m, m.inboxView.Load()
			}

		case key.Matches(msg, m.keys.New):
			if m.currentView == ViewBoard {
				return m, m.startCreate()
			}

		case key.Matches(msg, m.keys.Edit):
			if m.currentView == ViewBoard {
				if t, ok := m.board.Focused(); ok {
					m.previousView = m.currentView
					m.currentView = ViewTaskEdit
					m.formView.SetOptions(m.projects, m.ws.Users.GetAll())
					return m, m.formView.StartEdit(t)
				}
				return m, nil
			}

		case key.Matches(msg, m.keys.NextProject):
			if m.currentView == ViewBoard {
				return m, m.cycleProject()
			}

		case key.Matches(msg, m.keys.Projects):
			if m.currentView == ViewBoard {
				m.openProjects()
				return m, nil
			}

		case key.Matches(msg, m.keys.Users):
			if m.currentView == ViewBoard {
				m.openUsers()
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// capturesInput reports whether the active view is consuming free text,
// in which case global shortcuts are not applied.
func (m Model) capturesInput() bool {
	switch m.currentView {
	case ViewTaskCreate, ViewTaskEdit:
		return true
	case ViewCommand:
		return false
	case ViewBoard:
		return m.board.Searching()
	case ViewProjects:
		return m.projectView.Editing()
	case ViewUsers:
		return m.userView.Editing()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewBoard:
		m.board, cmd = m.board.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewTaskCreate, ViewTaskEdit:
		m.formView, cmd = m.formView.Update(msg)
	case ViewNotifications:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewProjects:
		m.projectView, cmd = m.projectView.Update(msg)
	case ViewUsers:
		m.userView, cmd = m.userView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "TaskHub"
	if p, ok := m.currentProject(); ok {
		headerTitle += " · " + p.Title
	}
	if m.unreadCount > 0 {
		headerTitle = fmt.Sprintf("%s [%d new]", headerTitle, m.unreadCount)
	}
	header := m.layout.RenderHeader(headerTitle, m.sessionStatus())
	content := m.renderContent()

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	if m.errMessage != "" {
		statusBar = m.layout.RenderErrorBar(m.errMessage)
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewBoard:
		if m.board.ProjectID() == "" {
			return "No projects yet. Use :new project <title> to create one."
		}
		return m.board.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewTaskCreate, ViewTaskEdit:
		return m.formView.View()
	case ViewNotifications:
		return m.inboxView.View()
	case ViewProjects:
		return m.projectView.View()
	case ViewUsers:
		return m.userView.View()
	default:
		return ""
	}
}

// sessionStatus shows who is signed in and the notification feed state.
func (m Model) sessionStatus() string {
	status := fmt.Sprintf("%s (%s)", m.actor.Name, m.actor.Role)
	switch m.ws.Notifications.State() {
	case notify.StateLoading:
		status += " | loading"
	case notify.StateLoadFailed:
		status += " | notifications unavailable"
	}
	return status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | e edit | j/k scroll"
	case ViewTaskCreate, ViewTaskEdit:
		return "enter submit | esc cancel"
	case ViewNotifications:
		return "x mark read | X mark all read | enter open | esc back"
	case ViewProjects, ViewUsers:
		return "n new | e edit | d delete | esc back"
	default:
		return fmt.Sprintf("q quit | ? help | n new | / search | H/L move | p project | P projects | i inbox | tab sort (%s)", m.board.SortLabel())
	}
}

func (m Model) currentProject() (model.Project, bool) {
	for _, p := range m.projects {
		if p.ID == m.board.ProjectID() {
			return p, true
		}
	}
	return model.Project{}, false
}

// refresh re-reads the workspace after a change. The board falls back to
// the first visible project if the one on display disappeared.
func (m *Model) refresh() tea.Cmd {
	m.projects = m.ws.VisibleProjects(m.actor, false)
	m.projectView.SetProjects(m.projects, m.ws.Users.GetAll(), m.taskCounts())
	m.userView.SetUsers(m.ws.Users.GetAll())
	cmds := []tea.Cmd{m.inboxView.Load()}

	if _, ok := m.currentProject(); !ok {
		next := ""
		if len(m.projects) > 0 {
			next = m.projects[0].ID
		}
		cmds = append(cmds, m.board.SetProject(next))
	} else {
		cmds = append(cmds, m.board.Load())
	}

	if id := m.detail.TaskID(); id != "" && m.currentView == ViewDetail {
		if _, err := m.ws.Tasks.Get(id); err != nil {
			m.detail.SetDetail(nil)
			m.currentView = ViewBoard
		} else {
			m.detail.SetDetail(m.resolveDetail(id))
		}
	}
	return tea.Batch(cmds...)
}

// openProjects shows the project manager.
func (m *Model) openProjects() {
	m.projectView.Reset()
	m.projectView.SetProjects(m.projects, m.ws.Users.GetAll(), m.taskCounts())
	m.previousView = m.currentView
	m.currentView = ViewProjects
}

// openUsers shows account administration, which only admins may use.
func (m *Model) openUsers() {
	if !policy.Allowed(m.actor.Role, policy.ManageUsers, policy.Ownership{}) {
		m.errMessage = "only admins can manage users"
		return
	}
	m.userView.Reset()
	m.userView.SetUsers(m.ws.Users.GetAll())
	m.previousView = m.currentView
	m.currentView = ViewUsers
}

func (m Model) taskCounts() map[string]int {
	counts := make(map[string]int)
	for _, t := range m.ws.Tasks.GetAll() {
		counts[t.ProjectID]++
	}
	return counts
}

func (m *Model) cycleProject() tea.Cmd {
	if len(m.projects) == 0 {
		return nil
	}
	next := 0
	for i, p := range m.projects {
		if p.ID == m.board.ProjectID() {
			next = (i + 1) % len(m.projects)
			break
		}
	}
	return m.board.SetProject(m.projects[next].ID)
}

func (m *Model) openDetail(taskID string) {
	d := m.resolveDetail(taskID)
	if d == nil {
		m.errMessage = fmt.Sprintf("task %s not found", taskID)
		return
	}
	m.detail.SetDetail(d)
	if m.currentView != ViewDetail {
		m.previousView = m.currentView
	}
	m.currentView = ViewDetail
}

// resolveDetail looks up a task and the names it refers to.
func (m Model) resolveDetail(taskID string) *detail.Detail {
	t, err := m.ws.Tasks.Get(taskID)
	if err != nil {
		return nil
	}
	d := &detail.Detail{Task: t}
	if p, err := m.ws.Projects.Get(t.ProjectID); err == nil {
		d.ProjectTitle = p.Title
	}
	if t.AssigneeID != "" {
		if u, err := m.ws.Users.Get(t.AssigneeID); err == nil {
			d.AssigneeName = u.Name
		}
	}
	for _, rec := range m.ws.RecentActivity(200) {
		if rec.Target == t.Title {
			d.Activity = append(d.Activity, rec)
		}
	}
	return d
}

// openRef navigates to the object a notification points at.
func (m *Model) openRef(ref string) tea.Cmd {
	kind, id, ok := crossref.SplitRef(ref)
	if !ok {
		return nil
	}
	switch kind {
	case "task":
		m.openDetail(id)
		return nil
	case "project":
		m.currentView = ViewBoard
		return m.board.SetProject(id)
	}
	return nil
}

func (m *Model) startCreate() tea.Cmd {
	if len(m.projects) == 0 {
		m.errMessage = "create a project first"
		return nil
	}
	m.previousView = m.currentView
	m.currentView = ViewTaskCreate
	m.formView.SetOptions(m.projects, m.ws.Users.GetAll())
	return m.formView.StartCreate(m.board.ProjectID())
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "refresh", "sync":
		return m.reload()
	case "quit", "q":
		m.stopPoller()
		return tea.Quit
	case "new":
		if rest, ok := strings.CutPrefix(arg, "project"); ok {
			return m.createProject(strings.TrimSpace(rest))
		}
		return m.startCreate()
	case "read-all":
		return m.markAllRead()
	case "inbox", "notifications":
		m.currentView = ViewNotifications
		return m.inboxView.Load()
	case "help":
		m.currentView = ViewHelp
		return nil
	case "projects":
		m.openProjects()
		return nil
	case "users":
		m.openUsers()
		return nil
	case "project":
		for _, p := range m.projects {
			if p.ID == arg || strings.EqualFold(p.Title, arg) {
				m.currentView = ViewBoard
				return m.board.SetProject(p.ID)
			}
		}
		m.errMessage = fmt.Sprintf("no visible project %q", arg)
		return nil
	default:
		m.errMessage = fmt.Sprintf("unknown command %q", name)
		return nil
	}
}

func (m *Model) stopPoller() {
	if m.poller != nil {
		m.poller.Stop()
	}
}

// WithProject starts the board on projectID when the actor can see it.
func (m Model) WithProject(projectID string) Model {
	for _, p := range m.projects {
		if p.ID == projectID {
			m.board.SetProject(projectID)
			break
		}
	}
	return m
}
