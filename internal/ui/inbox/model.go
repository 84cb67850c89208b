// Package inbox lists notifications and lets the user mark them read.
package inbox

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
)

// Source exposes the notifications to list.
type Source interface {
	Notifications() []model.Notification
	UnreadCount() int
}

// LoadedMsg carries a fresh snapshot of the notifications.
type LoadedMsg struct {
	Notifications []model.Notification
	Unread        int
}

// MarkReadRequestMsg asks the parent to mark one notification read.
type MarkReadRequestMsg struct {
	ID string
}

// MarkAllReadRequestMsg asks the parent to mark every notification read.
type MarkAllReadRequestMsg struct{}

// OpenRefMsg asks the parent to navigate to a notification's object.
type OpenRefMsg struct {
	Ref string
}

// BackMsg signals the parent to leave the inbox.
type BackMsg struct{}

// Model is the notification list view.
type Model struct {
	list   list.Model
	src    Source
	keys   *keys.KeyMap
	unread int
	width  int
	height int
}

// New creates an inbox over src.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{now: time.Now}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		src:    src,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Load returns a command that snapshots the notifications.
func (m Model) Load() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		return LoadedMsg{Notifications: src.Notifications(), Unread: src.UnreadCount()}
	}
}

// SetClock replaces the time source used for relative timestamps.
func (m *Model) SetClock(now func() time.Time) {
	m.list.SetDelegate(ItemDelegate{now: now})
}

// Unread returns the unread count from the last snapshot.
func (m Model) Unread() int {
	return m.unread
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	return it.Notification, ok
}

// Update handles messages for the inbox.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		items := make([]list.Item, len(msg.Notifications))
		for i, n := range msg.Notifications {
			items[i] = Item{Notification: n}
		}
		m.unread = msg.Unread
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			if n, ok := m.Selected(); ok && !n.IsRead {
				return m, func() tea.Msg { return MarkReadRequestMsg{ID: n.ID} }
			}
			return m, nil

		case key.Matches(msg, m.keys.MarkAllRead):
			return m, func() tea.Msg { return MarkAllReadRequestMsg{} }

		case key.Matches(msg, m.keys.Select):
			if n, ok := m.Selected(); ok && n.RelatedObjectRef != "" {
				return m, func() tea.Msg { return OpenRefMsg{Ref: n.RelatedObjectRef} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list, or an empty-state hint.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
