// Package board renders one project's tasks as kanban columns.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
	"github.com/nhle/taskhub/internal/view"
	"github.com/nhle/taskhub/internal/workspace"
)

// Source computes the columns of a project board.
type Source interface {
	Board(projectID string, filter view.TaskFilter, sort view.Sort) view.Columns
}

// ColumnsLoadedMsg carries freshly computed columns.
type ColumnsLoadedMsg struct {
	ProjectID string
	Columns   view.Columns
}

// SelectedTaskMsg is sent when the user opens a card.
type SelectedTaskMsg struct {
	TaskID string
}

// MoveRequestMsg asks the parent to move a task to another column.
type MoveRequestMsg struct {
	TaskID string
	To     model.TaskStatus
}

// DeleteRequestMsg asks the parent to delete a task.
type DeleteRequestMsg struct {
	TaskID string
}

// sortModes defines the orders cycled by Tab. The first keeps store order.
var sortModes = []view.Sort{
	{},
	{Field: view.SortPriority, Direction: view.Asc},
	{Field: view.SortDueDate, Direction: view.Asc},
	{Field: view.SortTitle, Direction: view.Asc},
	{Field: view.SortCreatedAt, Direction: view.Desc},
}

// Model is the kanban board view component.
type Model struct {
	src         Source
	keys        *keys.KeyMap
	projectID   string
	statuses    []model.TaskStatus
	columns     view.Columns
	col, row    int
	filter      view.TaskFilter
	sortIndex   int
	searchMode  bool
	searchInput textinput.Model
	now         func() time.Time
	width       int
	height      int
}

// New creates a board for projectID.
func New(src Source, k *keys.KeyMap, projectID string, width, height int) Model {
	si := textinput.New()
	si.Placeholder = "search tasks..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		src:         src,
		keys:        k,
		projectID:   projectID,
		statuses:    model.TaskStatuses,
		columns:     view.Columns{},
		searchInput: si,
		now:         time.Now,
		width:       width,
		height:      height,
	}
}

// Init loads the initial columns.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Load returns a command that recomputes the columns with the current
// filter and sort.
func (m Model) Load() tea.Cmd {
	src, projectID, filter, sort := m.src, m.projectID, m.filter, m.sort()
	return func() tea.Msg {
		return ColumnsLoadedMsg{ProjectID: projectID, Columns: src.Board(projectID, filter, sort)}
	}
}

// SetProject switches the board to another project.
func (m *Model) SetProject(projectID string) tea.Cmd {
	m.projectID = projectID
	m.col, m.row = 0, 0
	return m.Load()
}

// ProjectID returns the project on display.
func (m Model) ProjectID() string {
	return m.projectID
}

// SetClock replaces the time source used to flag overdue cards.
func (m *Model) SetClock(now func() time.Time) {
	m.now = now
}

// Focused returns the task under the cursor.
func (m Model) Focused() (model.Task, bool) {
	tasks := m.columns[m.status()]
	if m.row < 0 || m.row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.row], true
}

// FocusedStatus returns the status of the focused column.
func (m Model) FocusedStatus() model.TaskStatus {
	return m.status()
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the board.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ColumnsLoadedMsg:
		if msg.ProjectID != m.projectID {
			return m, nil
		}
		focused, ok := m.Focused()
		m.columns = msg.Columns
		if ok {
			m.refocus(focused.ID)
		}
		m.clamp()
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}
	return m, nil
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.filter.SearchTerm = strings.TrimSpace(m.searchInput.Value())
		return m, m.Load()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.SearchTerm = ""
		return m, m.Load()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
			m.clamp()
		}

	case key.Matches(msg, m.keys.Right):
		if m.col < len(m.statuses)-1 {
			m.col++
			m.clamp()
		}

	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}

	case key.Matches(msg, m.keys.Down):
		if m.row < len(m.columns[m.status()])-1 {
			m.row++
		}

	case key.Matches(msg, m.keys.MoveLeft):
		cmd := m.move(-1)
		return m, cmd

	case key.Matches(msg, m.keys.MoveRight):
		cmd := m.move(1)
		return m, cmd

	case key.Matches(msg, m.keys.Select):
		if t, ok := m.Focused(); ok {
			return m, func() tea.Msg { return SelectedTaskMsg{TaskID: t.ID} }
		}

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.Focused(); ok {
			return m, func() tea.Msg { return DeleteRequestMsg{TaskID: t.ID} }
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleSort):
		m.sortIndex = (m.sortIndex + 1) % len(sortModes)
		return m, m.Load()
	}
	return m, nil
}

// move asks for the focused card to shift delta columns. The cursor
// follows the card.
func (m *Model) move(delta int) tea.Cmd {
	t, ok := m.Focused()
	target := m.col + delta
	if !ok || target < 0 || target >= len(m.statuses) {
		return nil
	}
	m.col = target
	to := m.statuses[target]
	return func() tea.Msg { return MoveRequestMsg{TaskID: t.ID, To: to} }
}

func (m Model) status() model.TaskStatus {
	if len(m.statuses) == 0 {
		return ""
	}
	return m.statuses[m.col]
}

func (m Model) sort() view.Sort {
	return sortModes[m.sortIndex]
}

// refocus moves the cursor to wherever id now lives.
func (m *Model) refocus(id string) {
	for c, st := range m.statuses {
		for r, t := range m.columns[st] {
			if t.ID == id {
				m.col, m.row = c, r
				return
			}
		}
	}
}

func (m *Model) clamp() {
	n := len(m.columns[m.status()])
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

// SortLabel describes the active sort for the status bar.
func (m Model) SortLabel() string {
	s := m.sort()
	if s.Field == view.SortNone {
		return "board order"
	}
	return fmt.Sprintf("%s %s", s.Field, s.Direction)
}

// View renders the columns side by side.
func (m Model) View() string {
	if len(m.statuses) == 0 {
		return ""
	}
	colWidth := m.width/len(m.statuses) - 2
	if colWidth < 12 {
		colWidth = 12
	}

	rendered := make([]string, len(m.statuses))
	for i, st := range m.statuses {
		rendered[i] = m.renderColumn(i, st, colWidth)
	}
	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	if m.searchMode {
		bar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, bar, board)
	}
	if m.filter.SearchTerm != "" {
		bar := theme.HelpStyle.Render(fmt.Sprintf("filter: %q (/ then esc to clear)", m.filter.SearchTerm))
		return lipgloss.JoinVertical(lipgloss.Left, bar, board)
	}
	return board
}

func (m Model) renderColumn(idx int, st model.TaskStatus, width int) string {
	tasks := m.columns[st]
	heading := theme.StatusStyle(st).Render(fmt.Sprintf("%s (%d)", st.Label(), len(tasks)))

	lines := []string{heading, ""}
	if len(tasks) == 0 {
		lines = append(lines, theme.DimmedStyle.Render("no tasks"))
	}
	for r, t := range tasks {
		lines = append(lines, m.renderCard(t, idx == m.col && r == m.row, width-2))
	}

	style := theme.ColumnStyle
	if idx == m.col {
		style = theme.FocusedColumnStyle
	}
	height := m.height - 2
	if height < 4 {
		height = 4
	}
	return style.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) renderCard(t model.Task, selected bool, width int) string {
	badge := theme.PriorityStyle(t.Priority).Render(theme.PriorityBadge(t.Priority))
	title := truncate(t.Title, width-4)
	if workspace.IsProvisional(t.ID) {
		title = theme.ProvisionalStyle.Render(title + " …")
	}
	line := badge + " " + title

	if t.DueDate != nil {
		due := t.DueDate.Format("Jan 2")
		if t.IsOverdue(m.now()) {
			due = theme.OverdueStyle.Render(due)
		} else {
			due = theme.DimmedStyle.Render(due)
		}
		line += "\n  " + due
	}

	if selected {
		return theme.SelectedCardStyle.Render(line)
	}
	return theme.CardStyle.Render(line)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// SetSize updates the board dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = width - 4
}
