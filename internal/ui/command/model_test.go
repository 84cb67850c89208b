package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnter_EmitsTrimmedCommand(t *testing.T) {
	m := New(80, 24)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("  project Apollo ")})

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg("project Apollo"), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "input is cleared after execution")
}

func TestHistoryRecall(t *testing.T) {
	m := New(80, 24)
	for _, c := range []string{"inbox", "refresh", "refresh"} {
		m.input.SetValue(c)
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	}
	assert.Equal(t, []string{"inbox", "refresh"}, m.History(), "repeats are collapsed")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "refresh", m.input.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "inbox", m.input.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "inbox", m.input.Value(), "stops at the oldest entry")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Empty(t, m.input.Value())
}

func TestView_FiltersCommandList(t *testing.T) {
	m := New(100, 24)
	assert.Contains(t, m.View(), "read-all")

	m.input.SetValue("pro")
	out := m.View()
	assert.Contains(t, out, "projects")
	assert.NotContains(t, out, "read-all")
}

func TestSuggestions_DropPlaceholders(t *testing.T) {
	assert.Contains(t, suggestions(), "project")
	assert.NotContains(t, suggestions(), "project <id|title>")
}
