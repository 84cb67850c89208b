// Package command is the ":" palette used to run board commands by name.
package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Entry describes a command for completion and help.
type Entry struct {
	Usage       string
	Description string
}

// Commands lists everything the palette understands.
var Commands = []Entry{
	{"new", "create a task on the current board"},
	{"new project <title>", "create a project you manage"},
	{"project <id|title>", "switch the board to a project"},
	{"projects", "manage projects"},
	{"users", "manage users (admins)"},
	{"inbox", "show notifications"},
	{"read-all", "mark every notification read"},
	{"refresh", "reload from the backend"},
	{"help", "show keyboard shortcuts"},
	{"quit", "leave TaskHub"},
}

const historySize = 20

// Model is the command palette view.
type Model struct {
	input   textinput.Model
	history []string
	// recall is the history index shown in the input, or len(history)
	// when editing a fresh line.
	recall int
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command, tab completes"
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(suggestions())
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// suggestions are the command words without their placeholders.
func suggestions() []string {
	out := make([]string, 0, len(Commands))
	for _, c := range Commands {
		word, _, _ := strings.Cut(c.Usage, " <")
		out = append(out, word)
	}
	return out
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if cmd == "" {
				return m, nil
			}
			m.remember(cmd)
			return m, func() tea.Msg { return CommandMsg(cmd) }

		case tea.KeyUp:
			if m.recall > 0 {
				m.recall--
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			}
			return m, nil

		case tea.KeyDown:
			if m.recall < len(m.history) {
				m.recall++
				value := ""
				if m.recall < len(m.history) {
					value = m.history[m.recall]
				}
				m.input.SetValue(value)
				m.input.CursorEnd()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) remember(cmd string) {
	if n := len(m.history); n == 0 || m.history[n-1] != cmd {
		m.history = append(m.history, cmd)
	}
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	m.recall = len(m.history)
}

// History returns executed commands, oldest first.
func (m Model) History() []string {
	return m.history
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	lines := []string{titleStyle.Render("Command Palette"), m.input.View(), ""}

	typed := strings.TrimSpace(m.input.Value())
	usageStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite).Width(24)
	for _, c := range Commands {
		if typed != "" && !strings.HasPrefix(c.Usage, typed) {
			continue
		}
		lines = append(lines, usageStyle.Render(c.Usage)+theme.DimmedStyle.Render(c.Description))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
