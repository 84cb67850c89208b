package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskhub/internal/entity"
)

// Run starts the terminal UI and blocks until the user quits or ctx is
// cancelled. Workspace changes made by commands, the poller or another
// goroutine are forwarded to the program so the views stay current.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	notifyChange := func(entity.Event) { p.Send(storeChangedMsg{}) }
	for _, unsubscribe := range []func(){
		m.ws.Users.Subscribe(notifyChange),
		m.ws.Projects.Subscribe(notifyChange),
		m.ws.Tasks.Subscribe(notifyChange),
		m.ws.Notifications.Subscribe(notifyChange),
	} {
		defer unsubscribe()
	}

	if m.poller != nil {
		m.poller.Start(ctx)
		defer m.poller.Stop()
	}

	_, err := p.Run()
	return err
}
