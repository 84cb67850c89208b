package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/policy"
	"github.com/nhle/taskhub/internal/theme"
	"github.com/nhle/taskhub/internal/ui/command"
)

var actionLabels = map[policy.Action]string{
	policy.CreateProject:    "create projects",
	policy.EditProject:      "edit projects",
	policy.DeleteProject:    "delete projects",
	policy.ViewProject:      "view boards",
	policy.ManageUsers:      "manage users",
	policy.ManageTasks:      "create, edit and delete tasks",
	policy.UpdateTaskStatus: "move tasks between columns",
}

// Model is the help overlay: key bindings, palette commands and what the
// signed-in role may do.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	role   model.Role
	width  int
	height int
}

// New creates a new help view model for role.
func New(keys *keys.KeyMap, role model.Role, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		role:   role,
		width:  width,
		height: height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)

	sections := []string{
		heading.UnsetMarginTop().Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		heading.Render("Commands"),
	}
	for _, c := range command.Commands {
		sections = append(sections, fmt.Sprintf(":%-24s %s", c.Usage, theme.DimmedStyle.Render(c.Description)))
	}
	sections = append(sections,
		heading.Render(fmt.Sprintf("As %s you can", m.role)),
		Permissions(m.role),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// Permissions summarizes what role may do, one action per line.
func Permissions(role model.Role) string {
	var lines []string
	for _, a := range policy.Actions {
		switch {
		case policy.Allowed(role, a, policy.Ownership{}):
			lines = append(lines, "  "+actionLabels[a])
		case policy.Allowed(role, a, policy.Ownership{IsMember: true}):
			lines = append(lines, "  "+actionLabels[a]+" in projects you belong to")
		}
	}
	if len(lines) == 0 {
		return theme.DimmedStyle.Render("  nothing yet; ask an admin for access")
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
