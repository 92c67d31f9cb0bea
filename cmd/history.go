package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/signx/internal/labels"
)

type runSummary struct {
	ID         string      `json:"id"`
	Sequence   int         `json:"sequence"`
	ArtifactID string      `json:"artifact_id"`
	Source     string      `json:"source,omitempty"`
	Expected   *labels.Set `json:"expected"`
	Detected   *labels.Set `json:"detected"`
	Matched    int         `json:"matched"`
	Missed     int         `json:"missed"`
	Unexpected int         `json:"unexpected"`
	CreatedAt  time.Time   `json:"created_at"`
}

// History lists recorded submissions, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.history()
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}

	list, err := runs.List(map[string]any{
		"artifact_id": cmd.String("artifact"),
		"with_missed": cmd.Bool("missed"),
		"limit":       cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	summaries := make([]runSummary, 0, len(list))
	for _, run := range list {
		cmp := run.Comparison()
		summaries = append(summaries, runSummary{
			ID:         run.ID(),
			Sequence:   run.Sequence(),
			ArtifactID: run.ArtifactID(),
			Source:     run.SourceName(),
			Expected:   run.Expected(),
			Detected:   run.Detected(),
			Matched:    len(cmp.Matched()),
			Missed:     len(cmp.Missed()),
			Unexpected: len(cmp.Unexpected()),
			CreatedAt:  run.CreatedAt(),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, true)
	}

	if len(summaries) == 0 {
		return r.writePlain("No recorded runs.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Run history (%d)", len(summaries)))
	for _, s := range summaries {
		r.writePlain("#%-4d %s  %s", s.Sequence, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.ArtifactID)
		if s.Source != "" {
			r.writePlain(" (from %s)", s.Source)
		}
		r.writePlain("\n      expected: %s\n", s.Expected.String())
		r.writePlain("      %d matched • %d missed • %d unexpected\n", s.Matched, s.Missed, s.Unexpected)
	}
	return nil
}

// Labels prints the label catalog in display order.
func (r *Runner) Labels(ctx context.Context, cmd *cli.Command) error {
	catalog := labels.Catalog()
	if cmd.Bool("json") {
		return r.writeJSON(catalog, true)
	}

	for i, l := range catalog {
		r.writePlain("%2d. %s\n", i+1, l)
	}
	return nil
}
