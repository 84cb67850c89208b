package projectmgr

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
)

func press(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded() Model {
	m := New(keys.DefaultKeyMap(), 100, 30)
	m.SetProjects(
		[]model.Project{
			{ID: "1", Title: "Apollo", Status: model.ProjectInProgress, ManagerID: "2", Members: []string{"2", "3"}},
			{ID: "2", Title: "Zeus", Status: model.ProjectPlanning, Members: []string{"2"}},
		},
		[]model.User{{ID: "2", Name: "Pam"}, {ID: "3", Name: "Bob"}},
		map[string]int{"1": 4},
	)
	return m
}

func TestNavigationAndOpen(t *testing.T) {
	m := loaded()

	m, _ = m.Update(press("j"))
	p, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Zeus", p.Title)

	m, _ = m.Update(press("j"))
	p, _ = m.Selected()
	assert.Equal(t, "Apollo", p.Title, "wraps around")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, OpenMsg{ProjectID: "1"}, cmd())
}

func TestBack(t *testing.T) {
	m := loaded()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CloseMsg{}, cmd())
}

func TestSetProjects_ClampsSelection(t *testing.T) {
	m := loaded()
	m, _ = m.Update(press("j"))

	m.SetProjects([]model.Project{{ID: "1", Title: "Apollo"}}, nil, nil)
	p, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "1", p.ID)

	m.SetProjects(nil, nil, nil)
	_, ok = m.Selected()
	assert.False(t, ok)
}

func TestEditOpensFormWithProject(t *testing.T) {
	m := loaded()

	m, _ = m.Update(press("e"))
	assert.True(t, m.Editing())
	assert.Equal(t, "Apollo", m.fb.title)
	assert.Equal(t, []string{"2", "3"}, m.fb.members)
	assert.Contains(t, m.View(), "Edit Project")

	m.Reset()
	assert.False(t, m.Editing())
}

func TestSubmit_KeepsHiddenFieldsWhenEditing(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := loaded()
	existing := model.Project{ID: "1", Title: "Apollo", Progress: 40, CreatedAt: created, Members: []string{"2"}}
	m.editing = &existing
	m.fb.load(existing)
	m.fb.title = "  Apollo II "
	m.fb.members = []string{"2", "3"}
	m.fb.endDate = "2024-12-31"

	got := m.submit()
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "Apollo II", got.Title)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, []string{"2", "3"}, got.Members)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), got.EndDate)
	assert.True(t, got.StartDate.IsZero())
	assert.Equal(t, []string{"2"}, existing.Members, "original is not modified")
}

func TestNewStartsBlank(t *testing.T) {
	m := loaded()

	m, _ = m.Update(press("n"))
	require.True(t, m.Editing())
	assert.Contains(t, m.View(), "New Project")

	got := m.submit()
	assert.Empty(t, got.ID)
	assert.Equal(t, model.ProjectPlanning, got.Status)
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	m := loaded()

	m, _ = m.Update(press("d"))
	assert.Equal(t, modeConfirmDelete, m.mode)
	assert.Contains(t, m.View(), "Delete Project")
}

func TestViewList(t *testing.T) {
	out := loaded().View()

	assert.Contains(t, out, "Apollo")
	assert.Contains(t, out, "managed by Pam")
	assert.Contains(t, out, "4 tasks")
	assert.Contains(t, out, "Zeus")

	empty := New(keys.DefaultKeyMap(), 80, 24)
	assert.Contains(t, empty.View(), "No projects yet")
}

func TestValidateOptionalDate(t *testing.T) {
	assert.NoError(t, validateOptionalDate(""))
	assert.NoError(t, validateOptionalDate("2024-02-29"))
	assert.Error(t, validateOptionalDate("02/29/2024"))
}
