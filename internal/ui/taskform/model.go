// Package taskform is the huh form used to create and edit tasks, both
// inside the board and from the command line.
package taskform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
)

const dateLayout = "2006-01-02"

// TaskCreatedMsg is dispatched when a new task is submitted.
type TaskCreatedMsg struct {
	Task model.Task
}

// TaskUpdatedMsg is dispatched when an edited task is submitted.
type TaskUpdatedMsg struct {
	Task model.Task
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	priority    model.Priority
	status      model.TaskStatus
	projectID   string
	assigneeID  string
	dueDate     string
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editing  *model.Task
	projects []model.Project
	users    []model.User
	width    int
	height   int
}

// New creates a task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{priority: model.PriorityMedium, status: model.StatusBacklog},
		width:  width,
		height: height,
	}
}

// SetOptions sets the projects and users offered by the selectors.
func (m *Model) SetOptions(projects []model.Project, users []model.User) {
	m.projects = projects
	m.users = users
}

// StartCreate initializes the form for a new task in projectID.
func (m *Model) StartCreate(projectID string) tea.Cmd {
	m.editing = nil
	*m.fb = formBindings{
		priority:  model.PriorityMedium,
		status:    model.StatusBacklog,
		projectID: projectID,
	}
	m.form = m.build()
	return m.form.Init()
}

// StartEdit initializes the form with an existing task.
func (m *Model) StartEdit(t model.Task) tea.Cmd {
	m.editing = &t
	m.fb.load(t)
	m.form = m.build()
	return m.form.Init()
}

// Active reports whether a form is in progress.
func (m Model) Active() bool {
	return m.form != nil && m.form.State == huh.StateNormal
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.submit()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editing != nil {
		titleText = "Edit Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(fields(m.fb, m.projects, m.users, m.editing != nil)...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) submit() tea.Cmd {
	t := m.fb.task()
	if m.editing != nil {
		edited := *m.editing
		edited.Title = t.Title
		edited.Description = t.Description
		edited.Priority = t.Priority
		edited.Status = t.Status
		edited.ProjectID = t.ProjectID
		edited.AssigneeID = t.AssigneeID
		edited.DueDate = t.DueDate
		return func() tea.Msg { return TaskUpdatedMsg{Task: edited} }
	}
	return func() tea.Msg { return TaskCreatedMsg{Task: t} }
}

// Prompt runs the create form standalone on the terminal and returns the
// entered task. defaultProject preselects the project field.
func Prompt(projects []model.Project, users []model.User, defaultProject string) (model.Task, error) {
	fb := &formBindings{
		priority:  model.PriorityMedium,
		status:    model.StatusBacklog,
		projectID: defaultProject,
	}
	form := huh.NewForm(huh.NewGroup(fields(fb, projects, users, false)...))
	if err := form.Run(); err != nil {
		return model.Task{}, err
	}
	return fb.task(), nil
}

// fields returns the form fields bound to fb. The status field is only
// offered when editing; new tasks start in the backlog.
func fields(fb *formBindings, projects []model.Project, users []model.User, editing bool) []huh.Field {
	out := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs to be done?").
			Value(&fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&fb.description),
		huh.NewSelect[model.Priority]().
			Title("Priority").
			Options(
				huh.NewOption("Critical", model.PriorityCritical),
				huh.NewOption("High", model.PriorityHigh),
				huh.NewOption("Medium", model.PriorityMedium),
				huh.NewOption("Low", model.PriorityLow),
			).
			Value(&fb.priority),
	}
	if len(projects) > 0 {
		out = append(out, projectField(fb, projects))
	}
	out = append(out,
		assigneeField(fb, projects, users),
		huh.NewInput().
			Title("Due Date").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&fb.dueDate).
			Validate(validateOptionalDate),
	)
	if editing {
		opts := make([]huh.Option[model.TaskStatus], len(model.TaskStatuses))
		for i, st := range model.TaskStatuses {
			opts[i] = huh.NewOption(st.Label(), st)
		}
		out = append(out,
			huh.NewSelect[model.TaskStatus]().
				Title("Status").
				Options(opts...).
				Value(&fb.status),
		)
	}
	return out
}

func projectField(fb *formBindings, projects []model.Project) huh.Field {
	opts := make([]huh.Option[string], len(projects))
	for i, p := range projects {
		opts[i] = huh.NewOption(p.Title, p.ID)
	}
	return huh.NewSelect[string]().
		Title("Project").
		Options(opts...).
		Value(&fb.projectID)
}

// assigneeField lists the users involved in the selected project. The
// options are recomputed when the project changes.
func assigneeField(fb *formBindings, projects []model.Project, users []model.User) huh.Field {
	return huh.NewSelect[string]().
		Title("Assignee").
		OptionsFunc(func() []huh.Option[string] {
			return AssigneeOptions(fb.projectID, projects, users)
		}, &fb.projectID).
		Value(&fb.assigneeID)
}

// AssigneeOptions returns "Unassigned" followed by the users involved in
// projectID.
func AssigneeOptions(projectID string, projects []model.Project, users []model.User) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Unassigned", "")}
	var project model.Project
	for _, p := range projects {
		if p.ID == projectID {
			project = p
			break
		}
	}
	for _, u := range users {
		if project.Involves(u.ID) {
			opts = append(opts, huh.NewOption(u.Name, u.ID))
		}
	}
	return opts
}

func (fb *formBindings) load(t model.Task) {
	fb.title = t.Title
	fb.description = t.Description
	fb.priority = t.Priority
	fb.status = t.Status
	fb.projectID = t.ProjectID
	fb.assigneeID = t.AssigneeID
	fb.dueDate = ""
	if t.DueDate != nil {
		fb.dueDate = t.DueDate.Format(dateLayout)
	}
}

func (fb *formBindings) task() model.Task {
	t := model.Task{
		Title:       strings.TrimSpace(fb.title),
		Description: strings.TrimSpace(fb.description),
		Priority:    fb.priority,
		Status:      fb.status,
		ProjectID:   fb.projectID,
		AssigneeID:  fb.assigneeID,
	}
	if due, err := time.Parse(dateLayout, strings.TrimSpace(fb.dueDate)); err == nil {
		t.DueDate = &due
	}
	return t
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
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
