package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskhub/internal/model"
)

// opResultMsg is sent after a workspace mutation settles. The workspace
// has already applied or rolled back the change by the time it arrives.
type opResultMsg struct {
	op  string
	err error
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opResultMsg{op: op, err: fn(context.Background())}
	}
}

// createTask persists a new task.
func (m Model) createTask(t model.Task) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("create task", func(ctx context.Context) error {
		_, err := ws.CreateTask(ctx, actor, t)
		return err
	})
}

// updateTask saves an edited task.
func (m Model) updateTask(t model.Task) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("update task", func(ctx context.Context) error {
		_, err := ws.UpdateTask(ctx, actor, t)
		return err
	})
}

// moveTask changes a task's status.
func (m Model) moveTask(id string, to model.TaskStatus) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("move task", func(ctx context.Context) error {
		_, err := ws.MoveTask(ctx, actor, id, to)
		return err
	})
}

// deleteTask removes a task.
func (m Model) deleteTask(id string) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("delete task", func(ctx context.Context) error {
		return ws.DeleteTask(ctx, actor, id)
	})
}

// createProject creates a project managed by the current user.
func (m Model) createProject(title string) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("create project", func(ctx context.Context) error {
		_, err := ws.CreateProject(ctx, actor, model.Project{
			Title:   title,
			Status:  model.ProjectPlanning,
			Members: []string{actor.ID},
		})
		return err
	})
}

// saveProject creates p, or updates it when it already has an id.
func (m Model) saveProject(p model.Project) tea.Cmd {
	ws, actor := m.ws, m.actor
	if p.ID == "" {
		return m.run("create project", func(ctx context.Context) error {
			_, err := ws.CreateProject(ctx, actor, p)
			return err
		})
	}
	return m.run("update project", func(ctx context.Context) error {
		_, err := ws.UpdateProject(ctx, actor, p)
		return err
	})
}

// deleteProject removes a project and its tasks.
func (m Model) deleteProject(id string) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("delete project", func(ctx context.Context) error {
		return ws.DeleteProject(ctx, actor, id)
	})
}

func (m Model) createUser(u model.User, password string) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("create user", func(ctx context.Context) error {
		_, err := ws.CreateUser(ctx, actor, u, password)
		return err
	})
}

func (m Model) updateUser(u model.User) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("update user", func(ctx context.Context) error {
		_, err := ws.UpdateUser(ctx, actor, u)
		return err
	})
}

func (m Model) deleteUser(id string) tea.Cmd {
	ws, actor := m.ws, m.actor
	return m.run("delete user", func(ctx context.Context) error {
		return ws.DeleteUser(ctx, actor, id)
	})
}

func (m Model) markRead(id string) tea.Cmd {
	n := m.ws.Notifications
	return m.run("mark read", func(ctx context.Context) error {
		return n.MarkRead(ctx, id)
	})
}

func (m Model) markAllRead() tea.Cmd {
	n := m.ws.Notifications
	return m.run("mark all read", func(ctx context.Context) error {
		return n.MarkAllRead(ctx)
	})
}

// reload refetches everything from the backend and asks the poller for
// a fresh notification load.
func (m Model) reload() tea.Cmd {
	ws, p := m.ws, m.poller
	return m.run("refresh", func(ctx context.Context) error {
		if p != nil {
			p.Refresh()
		}
		return ws.Hydrate(ctx)
	})
}
