package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/signx/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config, err := shared.LoadConfigOrDefault("config.toml")
	if err != nil {
		logger.Warn("failed to load config.toml, using defaults", "error", err)
		config = shared.DefaultConfig()
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: "config.toml",
		Logger:     logger,
	})
	defer runner.Close()

	app := newApp(runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		runner.Close()
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted")
			os.Exit(130)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command. Global flags are read by [Runner.Init] before any subcommand runs.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "signx",
		Usage:   "Check traffic-sign detections against what you expected to see",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override [logging] level (debug, info, warn, error)",
			},
		},
		Before:   r.Init,
		Commands: r.register(),
	}
}
