// Package projectmgr lists the projects visible to the signed-in user and
// hosts the forms used to create, edit and delete them.
package projectmgr

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
)

const dateLayout = "2006-01-02"

// statuses is the order offered by the status selector.
var statuses = []string{
	model.ProjectPlanning,
	model.ProjectInProgress,
	model.ProjectOnHold,
	model.ProjectCompleted,
}

// CloseMsg signals the parent to close the project view.
type CloseMsg struct{}

// OpenMsg asks the parent to show the board of a project.
type OpenMsg struct {
	ProjectID string
}

// SaveRequestMsg asks the parent to persist a project. ID is empty for
// new projects.
type SaveRequestMsg struct {
	Project model.Project
}

// DeleteRequestMsg asks the parent to delete a project and its tasks.
type DeleteRequestMsg struct {
	ProjectID string
}

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
)

// formBindings lives on the heap so huh's Value pointers survive model
// copies.
type formBindings struct {
	title       string
	description string
	status      string
	managerID   string
	members     []string
	startDate   string
	endDate     string
	confirm     bool
}

// Model is the Bubble Tea model for project management.
type Model struct {
	mode        mode
	keys        *keys.KeyMap
	projects    []model.Project
	users       []model.User
	taskCounts  map[string]int
	selectedIdx int
	editing     *model.Project
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	width       int
	height      int
}

// New creates a project manager.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:   modeList,
		keys:   k,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetProjects replaces the listed projects. users feed the manager and
// member selectors; taskCounts may be nil.
func (m *Model) SetProjects(projects []model.Project, users []model.User, taskCounts map[string]int) {
	m.projects = projects
	m.users = users
	m.taskCounts = taskCounts
	if m.selectedIdx >= len(m.projects) {
		m.selectedIdx = max(len(m.projects)-1, 0)
	}
}

// Selected returns the highlighted project.
func (m Model) Selected() (model.Project, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.projects) {
		return model.Project{}, false
	}
	return m.projects[m.selectedIdx], true
}

// Editing reports whether a form is on display.
func (m Model) Editing() bool {
	return m.mode != modeList
}

// Reset leaves any open form and returns to the list.
func (m *Model) Reset() {
	m.mode = modeList
	m.form = nil
	m.confirmForm = nil
	m.editing = nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeList:
			return m.handleListKey(msg)
		case modeForm:
			return m.updateForm(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
	}

	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.projects) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.projects)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.projects) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.projects) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		p, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenMsg{ProjectID: p.ID} }

	case key.Matches(msg, m.keys.New):
		m.editing = nil
		*m.fb = formBindings{status: model.ProjectPlanning}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Edit):
		p, ok := m.Selected()
		if !ok {
			return m, nil
		}
		m.editing = &p
		m.fb.load(p)
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Delete):
		if _, ok := m.Selected(); !ok {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(fields(m.fb, m.users)...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func fields(fb *formBindings, users []model.User) []huh.Field {
	statusOpts := make([]huh.Option[string], len(statuses))
	for i, s := range statuses {
		statusOpts[i] = huh.NewOption(s, s)
	}
	managerOpts := []huh.Option[string]{huh.NewOption("None", "")}
	memberOpts := make([]huh.Option[string], 0, len(users))
	for _, u := range users {
		managerOpts = append(managerOpts, huh.NewOption(u.Name, u.ID))
		memberOpts = append(memberOpts, huh.NewOption(u.Name, u.ID))
	}

	return []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("Project title").
			Value(&fb.title).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("title is required")
				}
				return nil
			}),
		huh.NewText().
			Title("Description").
			Placeholder("Optional description").
			Value(&fb.description),
		huh.NewSelect[string]().
			Title("Status").
			Options(statusOpts...).
			Value(&fb.status),
		huh.NewSelect[string]().
			Title("Manager").
			Options(managerOpts...).
			Value(&fb.managerID),
		huh.NewMultiSelect[string]().
			Title("Members").
			Options(memberOpts...).
			Value(&fb.members).
			Validate(func(ids []string) error {
				if len(ids) == 0 && fb.managerID == "" {
					return fmt.Errorf("pick at least one member")
				}
				return nil
			}),
		huh.NewInput().
			Title("Start").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&fb.startDate).
			Validate(validateOptionalDate),
		huh.NewInput().
			Title("End").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&fb.endDate).
			Validate(validateOptionalDate),
	}
}

func (m Model) buildConfirmForm() *huh.Form {
	p, _ := m.Selected()
	desc := "The project has no tasks."
	if n := m.taskCounts[p.ID]; n > 0 {
		desc = fmt.Sprintf("Its %d task(s) will be deleted too.", n)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete project %q?", p.Title)).
				Description(desc).
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		p := m.submit()
		m.Reset()
		return m, func() tea.Msg { return SaveRequestMsg{Project: p} }
	case huh.StateAborted:
		m.Reset()
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	switch m.confirmForm.State {
	case huh.StateCompleted:
		p, ok := m.Selected()
		confirmed := m.fb.confirm
		m.Reset()
		if confirmed && ok {
			return m, func() tea.Msg { return DeleteRequestMsg{ProjectID: p.ID} }
		}
		return m, nil
	case huh.StateAborted:
		m.Reset()
		return m, nil
	}
	return m, cmd
}

// submit builds the project described by the form, keeping the fields the
// form does not show when editing.
func (m Model) submit() model.Project {
	var p model.Project
	if m.editing != nil {
		p = m.editing.Clone()
	}
	p.Title = strings.TrimSpace(m.fb.title)
	p.Description = strings.TrimSpace(m.fb.description)
	p.Status = m.fb.status
	p.ManagerID = m.fb.managerID
	p.Members = append([]string(nil), m.fb.members...)
	p.StartDate = parseDate(m.fb.startDate)
	p.EndDate = parseDate(m.fb.endDate)
	return p
}

// View renders the project manager.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form, m.formTitle())
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm, "Delete Project")
	default:
		return m.viewList()
	}
}

func (m Model) formTitle() string {
	if m.editing != nil {
		return "Edit Project"
	}
	return "New Project"
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Projects"))
	b.WriteString("\n\n")

	if len(m.projects) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("No projects yet. Press 'n' to create one."))
	} else {
		names := make(map[string]string, len(m.users))
		for _, u := range m.users {
			names[u.ID] = u.Name
		}
		for i, p := range m.projects {
			label := fmt.Sprintf("%s  %s", p.Title, theme.ProjectStatusStyle(p.Status).Render(p.Status))
			meta := fmt.Sprintf("%d members, %d tasks", len(p.Members), m.taskCounts[p.ID])
			if mgr := names[p.ManagerID]; mgr != "" {
				meta = "managed by " + mgr + ", " + meta
			}
			line := label + "  " + theme.DimmedStyle.Render(meta)

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedCardStyle.Render(line))
			} else {
				b.WriteString(theme.CardStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"enter open | n new | e edit | d delete | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form, title string) string {
	if f == nil {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	return lipgloss.NewStyle().Padding(1, 2).Render(titleStyle.Render(title) + "\n" + f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func (fb *formBindings) load(p model.Project) {
	fb.title = p.Title
	fb.description = p.Description
	fb.status = p.Status
	fb.managerID = p.ManagerID
	fb.members = append([]string(nil), p.Members...)
	fb.startDate = formatDate(p.StartDate)
	fb.endDate = formatDate(p.EndDate)
	fb.confirm = false
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
