package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/signx/internal/shared"
	"github.com/desertthunder/signx/internal/ui"
)

// TUI launches the interactive terminal UI for one workflow session.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	changes := ui.NewSignal()
	machine, err := r.newMachine(changes.Notify)
	if err != nil {
		return err
	}
	defer machine.Leave()

	dir := cmd.String("dir")
	if dir == "" {
		dir = r.config.Downloads.Dir
	}

	model := ui.NewModel(ctx, machine, changes, ui.Opts{
		DownloadDir: dir,
		Open: func(ref string) error {
			return r.open(r.results.AbsoluteReference(ref))
		},
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
