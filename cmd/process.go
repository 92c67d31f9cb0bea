package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/signx/internal/formatter"
	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
	"github.com/desertthunder/signx/internal/workflow"
)

// Process runs one workflow session from flags: select labels, pick the file, submit, wait for
// the result and print the comparison.
func (r *Runner) Process(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if !formatter.ValidFormat(format) {
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	expected, err := parseLabels(cmd.StringSlice("label"))
	if err != nil {
		return err
	}
	if expected.Len() == 0 {
		return fmt.Errorf("%w: at least one --label is required", shared.ErrMissingArgument)
	}

	candidate, err := models.NewFileCandidate(cmd.String("file"))
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var once sync.Once
	logger := r.logger
	machine, err := r.newMachine(func(s workflow.Snapshot) {
		switch s.Phase {
		case workflow.AwaitingCompletion:
			logger.Info(s.Status, "progress", fmt.Sprintf("%d%%", s.Progress))
		case workflow.Completed:
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		return err
	}
	defer machine.Leave()

	for _, l := range expected.Labels() {
		if _, err := machine.ToggleLabel(l); err != nil {
			return err
		}
	}
	if err := machine.Advance(); err != nil {
		return err
	}
	if err := machine.PickFile(candidate); err != nil {
		return err
	}

	r.logger.Info("uploading", "file", candidate.Name(), "labels", expected.String())
	if err := machine.Submit(ctx); err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	snap := machine.Snapshot()
	if dir := cmd.String("download"); dir != "" {
		path, err := machine.Download(ctx, dir)
		if err != nil {
			return err
		}
		r.logger.Info("saved processed video", "path", path)
	}

	report := formatter.NewReport(snap.Artifact.ID, snap.Expected, snap.Artifact.Detected())
	report.Reference = snap.Reference
	report.Source = candidate.Name()
	return r.emitReport(report, format, cmd.String("save"))
}

// parseLabels validates label flags against the catalog and returns them in catalog spelling.
func parseLabels(values []string) (*labels.Set, error) {
	set := labels.NewSet()
	for _, v := range values {
		if !labels.InCatalog(v) {
			return nil, fmt.Errorf("%w: unknown label %q (see 'signx labels')", shared.ErrInvalidArgument, v)
		}
		set.Add(labels.Canonical(v))
	}
	return set, nil
}

// emitReport prints the report, or writes it into dir when one is given.
func (r *Runner) emitReport(report *formatter.Report, format, dir string) error {
	if dir != "" {
		path, err := formatter.WriteReport(report, format, dir)
		if err != nil {
			return err
		}
		r.writePlain("✓ Report saved to %s\n", path)
		return nil
	}

	out, err := formatter.Render(report, format)
	if err != nil {
		return err
	}
	return r.writeBytes(out)
}
