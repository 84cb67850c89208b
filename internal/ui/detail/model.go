package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
)

// BackMsg signals the parent to navigate back to the board.
type BackMsg struct{}

// EditRequestMsg asks the parent to open the edit form for a task.
type EditRequestMsg struct {
	Task model.Task
}

// Detail is a task with its references resolved for display.
type Detail struct {
	Task         model.Task
	ProjectTitle string
	AssigneeName string
	Activity     []model.ActivityRecord
}

// Model is the task detail view component.
type Model struct {
	detail   *Detail
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Edit):
			if m.detail != nil {
				t := m.detail.Task
				return m, func() tea.Msg { return EditRequestMsg{Task: t} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.detail == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No task selected")
	}
	return m.viewport.View()
}

// TaskID returns the id of the task on display, or "".
func (m Model) TaskID() string {
	if m.detail == nil {
		return ""
	}
	return m.detail.Task.ID
}

// SetDetail replaces the task on display. A nil detail clears the view.
func (m *Model) SetDetail(d *Detail) {
	m.detail = d
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

func (m Model) renderContent() string {
	if m.detail == nil {
		return ""
	}
	task := m.detail.Task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(task.Title))

	statusBadge := theme.StatusStyle(task.Status).Render(task.Status.Label())
	priBadge := theme.PriorityStyle(task.Priority).Render(string(task.Priority))
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, statusBadge, "  ", priBadge),
		"",
	)

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(fmt.Sprintf("%-9s", label+":")),
			valStyle.Render(value)))
	}

	row("Project", m.detail.ProjectTitle)
	assignee := m.detail.AssigneeName
	if assignee == "" {
		assignee = "unassigned"
	}
	row("Assignee", assignee)
	if task.DueDate != nil {
		row("Due", task.DueDate.Format("2006-01-02"))
	}
	if !task.CreatedAt.IsZero() {
		row("Created", task.CreatedAt.Format("2006-01-02 15:04"))
	}
	if !task.UpdatedAt.IsZero() {
		row("Updated", task.UpdatedAt.Format("2006-01-02 15:04"))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sections = append(sections, headerStyle.Render("Description"))

	body := task.Description
	if body == "" {
		body = theme.DimmedStyle.Italic(true).Render("No description")
	}
	sections = append(sections, body)

	if len(m.detail.Activity) > 0 {
		sections = append(sections, "", separator, "", headerStyle.Render("Activity"))
		timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
		for _, a := range m.detail.Activity {
			sections = append(sections, fmt.Sprintf("%s  %s %s",
				timeStyle.Render(a.Timestamp.Format("Jan 2 15:04")),
				a.User, a.Action))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}
