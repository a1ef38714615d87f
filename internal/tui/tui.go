// Package tui is the full-screen admin console.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"devon-cli/internal/mutate"
)

// Run starts the console and blocks until the operator quits or ctx ends.
func Run(ctx context.Context, svc *mutate.Service, pageSize int, log zerolog.Logger) error {
	applyThemePreference()
	applyColorProfilePreference()

	m := newAppModel(ctx, svc, pageSize, log)
	defer m.unsubscribe()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
