// Package usermgr is the account administration view: it lists users and
// hosts the forms that create, edit and remove them.
package usermgr

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
)

// CloseMsg signals the parent to close the user view.
type CloseMsg struct{}

// CreateRequestMsg asks the parent to register a new account.
type CreateRequestMsg struct {
	User     model.User
	Password string
}

// UpdateRequestMsg asks the parent to save an edited account.
type UpdateRequestMsg struct {
	User model.User
}

// DeleteRequestMsg asks the parent to remove an account.
type DeleteRequestMsg struct {
	UserID string
}

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	name     string
	email    string
	role     model.Role
	status   model.UserStatus
	password string
	confirm  bool
}

// Model is the Bubble Tea model for user administration.
type Model struct {
	mode        mode
	keys        *keys.KeyMap
	users       []model.User
	selfID      string
	selectedIdx int
	editing     *model.User
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	width       int
	height      int
}

// New creates a user manager. selfID is the signed-in user, who cannot
// delete their own account from here.
func New(k *keys.KeyMap, selfID string, width, height int) Model {
	return Model{
		mode:   modeList,
		keys:   k,
		selfID: selfID,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetUsers replaces the listed accounts.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
	if m.selectedIdx >= len(m.users) {
		m.selectedIdx = max(len(m.users)-1, 0)
	}
}

// Selected returns the highlighted account.
func (m Model) Selected() (model.User, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.users) {
		return model.User{}, false
	}
	return m.users[m.selectedIdx], true
}

// Editing reports whether a form is on display.
func (m Model) Editing() bool {
	return m.mode != modeList
}

// Reset leaves any open form.
func (m *Model) Reset() {
	m.mode = modeList
	m.form = nil
	m.confirmForm = nil
	m.editing = nil
	m.fb.password = ""
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleListKey(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.users) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.users)
		}

	case key.Matches(msg, m.keys.Up):
		if len(m.users) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.users) - 1
			}
		}

	case key.Matches(msg, m.keys.New):
		m.editing = nil
		*m.fb = formBindings{role: model.RoleMember, status: model.UserActive}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Edit):
		u, ok := m.Selected()
		if !ok {
			return m, nil
		}
		m.editing = &u
		*m.fb = formBindings{name: u.Name, email: u.Email, role: u.Role, status: u.Status}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Delete):
		u, ok := m.Selected()
		if !ok || u.ID == m.selfID {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm(u)
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildForm() *huh.Form {
	fb := m.fb
	roles := []model.Role{model.RoleAdmin, model.RoleProjectManager, model.RoleMember, model.RoleViewer}
	roleOpts := make([]huh.Option[model.Role], len(roles))
	for i, r := range roles {
		roleOpts[i] = huh.NewOption(string(r), r)
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Name").
			Value(&fb.name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("name is required")
				}
				return nil
			}),
		huh.NewInput().
			Title("Email").
			Placeholder("name@example.com").
			Value(&fb.email).
			Validate(validateEmail),
		huh.NewSelect[model.Role]().
			Title("Role").
			Options(roleOpts...).
			Value(&fb.role),
	}
	if m.editing == nil {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&fb.password).
			Validate(func(s string) error {
				if s == "" {
					return fmt.Errorf("password is required")
				}
				return nil
			}))
	} else {
		fields = append(fields, huh.NewSelect[model.UserStatus]().
			Title("Status").
			Options(
				huh.NewOption("Active", model.UserActive),
				huh.NewOption("Inactive", model.UserInactive),
			).
			Value(&fb.status))
	}

	return huh.NewForm(huh.NewGroup(fields...)).
		WithWidth(m.formWidth()).
		WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm(u model.User) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s?", u.Email)).
				Description("Tasks assigned to them become unassigned.").
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
		out := m.submit()
		m.Reset()
		return m, func() tea.Msg { return out }
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
		u, ok := m.Selected()
		confirmed := m.fb.confirm
		m.Reset()
		if confirmed && ok {
			return m, func() tea.Msg { return DeleteRequestMsg{UserID: u.ID} }
		}
		return m, nil
	case huh.StateAborted:
		m.Reset()
		return m, nil
	}
	return m, cmd
}

// submit returns the request message for the completed form.
func (m Model) submit() tea.Msg {
	if m.editing != nil {
		u := *m.editing
		u.Name = strings.TrimSpace(m.fb.name)
		u.Email = strings.TrimSpace(m.fb.email)
		u.Role = m.fb.role
		u.Status = m.fb.status
		return UpdateRequestMsg{User: u}
	}
	return CreateRequestMsg{
		User: model.User{
			Name:   strings.TrimSpace(m.fb.name),
			Email:  strings.TrimSpace(m.fb.email),
			Role:   m.fb.role,
			Status: model.UserActive,
		},
		Password: m.fb.password,
	}
}

// View renders the user manager.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		title := "New User"
		if m.editing != nil {
			title = "Edit User"
		}
		return m.viewForm(m.form, title)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm, "Delete User")
	}
	return m.viewList()
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Users"))
	b.WriteString("\n\n")

	for i, u := range m.users {
		line := fmt.Sprintf("%-20s %-28s %-16s", u.Name, u.Email, u.Role)
		if u.Status == model.UserInactive {
			line = theme.DimmedStyle.Render(line + " inactive")
		}
		if u.ID == m.selfID {
			line += " (you)"
		}
		if i == m.selectedIdx {
			b.WriteString(theme.SelectedCardStyle.Render(line))
		} else {
			b.WriteString(theme.CardStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"n new | e edit | d delete | esc back",
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

func validateEmail(s string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}
