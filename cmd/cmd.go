// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/signx/internal/formatter"
)

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, markdown, csv or json",
		Value:   formatter.FormatText,
	}
}

func labelFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:    "label",
		Aliases: []string{"l"},
		Usage:   "Expected label (repeatable, see 'signx labels')",
	}
}

// runCommand launches the interactive workflow.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive label → upload → results workflow",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory for downloaded videos (default: [downloads] dir)",
			},
		},
		Action: r.TUI,
	}
}

// processCommand runs the workflow without a terminal UI.
func processCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Upload a video with its expected labels and print the comparison",
		Flags: []cli.Flag{
			labelFlag(),
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Video file to upload",
				Required: true,
			},
			formatFlag(),
			&cli.StringFlag{
				Name:  "download",
				Usage: "Also save the processed video into this directory",
			},
			&cli.StringFlag{
				Name:  "save",
				Usage: "Also write the comparison report into this directory",
			},
		},
		Action: r.Process,
	}
}

// latestCommand shows the most recent processed video.
func latestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recently processed video",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Latest,
	}
}

// listCommand lists all processed videos.
func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List all processed videos, newest first",
		Flags:   []cli.Flag{formatFlag()},
		Action:  r.List,
	}
}

// downloadCommand saves processed videos locally.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download a processed video (default: the latest)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Output directory (default: [downloads] dir)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Download every processed video",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent downloads with --all (max 8)",
				Value: 3,
			},
			&cli.StringFlag{
				Name:  "reports",
				Usage: "With --all, write a comparison report per video in this format",
			},
		},
		Action: r.Download,
	}
}

// openCommand opens a playback reference in the browser.
func openCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Open a processed video in the browser (default: the latest)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "print",
				Usage: "Print the playback reference instead of opening it",
			},
		},
		Action: r.Open,
	}
}

// compareCommand compares expected labels with a processed video's detections.
func compareCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "Compare expected labels with what was detected (default: the latest video)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			labelFlag(),
			formatFlag(),
			&cli.StringFlag{
				Name:  "save",
				Usage: "Write the report into this directory instead of stdout",
			},
		},
		Action: r.Compare,
	}
}

// labelsCommand prints the label catalog.
func labelsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "labels",
		Usage: "List the labels the detector recognizes",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Labels,
	}
}

// historyCommand lists recorded submissions.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past submissions recorded on this machine",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "artifact",
				Usage: "Only show runs for this processed video",
			},
			&cli.BoolFlag{
				Name:  "missed",
				Usage: "Only show runs where an expected label was not detected",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// setupCommand creates the config file and the run database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file if missing, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Revert the most recent migration",
			},
		},
		Action: r.Setup,
	}
}

// apiCommand handles direct service calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the processing service",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the service, prints the raw reply",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}
