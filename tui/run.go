package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/voicelink/app"
)

var _ Backend = (*app.App)(nil)

// Run shows the terminal UI for a until the user quits or ctx is
// cancelled. prompter must be the one a was built with.
func Run(ctx context.Context, a *app.App, prompter *Prompter) error {
	prog := tea.NewProgram(New(a), tea.WithAltScreen(), tea.WithContext(ctx))

	prompter.attach(prog.Send)
	defer prompter.detach()

	a.Subscribe(func(ev app.Event) {
		prog.Send(eventMsg(ev))
	})

	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
