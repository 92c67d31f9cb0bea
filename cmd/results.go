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
	"github.com/desertthunder/signx/internal/tasks"
)

// Latest shows the most recently processed video.
func (r *Runner) Latest(ctx context.Context, cmd *cli.Command) error {
	artifact, err := r.results.FetchLatest(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch latest video: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(artifact, true)
	}

	if artifact == nil {
		return r.writePlain("No processed videos yet.\n")
	}

	detected := artifact.Detected().String()
	if detected == "" {
		detected = "(none)"
	}

	r.writePlainHeader("Latest processed video")
	r.writePlain("Video:    %s\n", artifact.ID)
	r.writePlain("Playback: %s\n", r.results.PlaybackReference(artifact.ID))
	r.writePlain("Detected: %s\n", detected)
	return nil
}

// List prints every processed video in the requested format.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	artifacts, err := r.results.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}

	r.logger.Debug("listed videos", "count", len(artifacts))

	out, err := formatter.RenderArtifacts(artifacts, cmd.String("format"))
	if err != nil {
		return err
	}
	return r.writeBytes(out)
}

// Download saves one processed video, or all of them with --all.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	if dir == "" {
		dir = r.config.Downloads.Dir
	}

	if cmd.Bool("all") {
		return r.downloadAll(ctx, cmd, dir)
	}

	id, err := r.artifactID(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	path, err := r.results.Download(ctx, id, dir)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", id, err)
	}

	r.logger.Info("downloaded", "video", id, "path", path)
	return r.writePlain("✓ Saved %s\n", path)
}

func (r *Runner) downloadAll(ctx context.Context, cmd *cli.Command, dir string) error {
	artifacts, err := r.results.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}
	if len(artifacts) == 0 {
		return r.writePlain("No processed videos to download.\n")
	}

	opts := tasks.BulkDownloadOpts{
		OutputDir:  dir,
		NumWorkers: cmd.Int("workers"),
		RateLimit:  r.config.Service.RateLimit,
		Format:     cmd.String("reports"),
	}
	if opts.Format != "" {
		opts.Expected = r.expectedByArtifact()
	}

	prog := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range prog {
			r.logger.Info(u.Message, "step", u.Step, "total", u.Total)
		}
	}()

	result, err := tasks.BulkDownload(ctx, prog, r.results, artifacts, opts)
	close(prog)
	wg.Wait()

	if result != nil {
		r.writePlainHeader("Download summary")
		r.writePlain("Directory:  %s\n", result.OutputDirectory)
		r.writePlain("Successful: %d/%d\n", result.Successful, result.Total)
		if result.Failed > 0 {
			r.writePlain("Failed:     %d\n", result.Failed)
			for _, res := range result.Results {
				if !res.Success {
					r.writePlain("  • %s: %s\n", res.ArtifactID, res.Message)
				}
			}
		}
		if result.ManifestPath != "" {
			r.writePlain("Manifest:   %s\n", result.ManifestPath)
		}
	}
	return err
}

// expectedByArtifact maps each artifact to the labels expected in its most recent recorded run.
func (r *Runner) expectedByArtifact() map[string]*labels.Set {
	runs, err := r.history()
	if err != nil {
		r.logger.Warn("run history unavailable, reports will have no expected labels", "error", err)
		return nil
	}

	list, err := runs.List(map[string]any{})
	if err != nil {
		r.logger.Warn("failed to read run history", "error", err)
		return nil
	}

	expected := make(map[string]*labels.Set, len(list))
	for _, run := range list {
		if _, seen := expected[run.ArtifactID()]; !seen {
			expected[run.ArtifactID()] = run.Expected()
		}
	}
	return expected
}

// Open opens a playback reference in the system browser.
func (r *Runner) Open(ctx context.Context, cmd *cli.Command) error {
	id, err := r.artifactID(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	ref := r.results.PlaybackReference(id)
	if cmd.Bool("print") {
		return r.writePlain("%s\n", ref)
	}
	ref = r.results.AbsoluteReference(ref)

	if err := r.open(ref); err != nil {
		return err
	}
	return r.writePlain("Opened %s\n", ref)
}

// Compare reports which expected labels were detected in a processed video.
//
// Expected labels come from --label flags, or from the most recent recorded run for the video.
func (r *Runner) Compare(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if !formatter.ValidFormat(format) {
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	artifact, err := r.findArtifact(ctx, cmd.StringArg("id"))
	if err != nil {
		return err
	}

	expected, err := parseLabels(cmd.StringSlice("label"))
	if err != nil {
		return err
	}
	detected := artifact.Detected()

	var source string
	if expected.Len() == 0 || detected.Len() == 0 {
		if run := r.lastRun(artifact.ID); run != nil {
			if expected.Len() == 0 {
				expected = run.Expected()
			}
			if detected.Len() == 0 {
				detected = run.Detected()
			}
			source = run.SourceName()
		}
	}
	if expected.Len() == 0 {
		return fmt.Errorf("%w: no expected labels recorded for %s, pass --label", shared.ErrMissingArgument, artifact.ID)
	}

	report := formatter.NewReport(artifact.ID, expected, detected)
	report.Reference = r.results.PlaybackReference(artifact.ID)
	report.Source = source
	return r.emitReport(report, format, cmd.String("save"))
}

// artifactID returns id, or the latest artifact's ID when id is empty.
func (r *Runner) artifactID(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	latest, err := r.results.FetchLatest(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest video: %w", err)
	}
	if latest == nil {
		return "", fmt.Errorf("%w: no processed videos yet", shared.ErrNoArtifact)
	}
	return latest.ID, nil
}

// findArtifact looks up an artifact with its detected labels. An empty id means the latest.
func (r *Runner) findArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	if id == "" {
		latest, err := r.results.FetchLatest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch latest video: %w", err)
		}
		if latest == nil {
			return nil, fmt.Errorf("%w: no processed videos yet", shared.ErrNoArtifact)
		}
		return latest, nil
	}

	artifacts, err := r.results.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	for _, a := range artifacts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrNoArtifact, id)
}

func (r *Runner) lastRun(artifactID string) *models.Run {
	runs, err := r.history()
	if err != nil {
		r.logger.Debug("run history unavailable", "error", err)
		return nil
	}
	run, err := runs.LatestFor(artifactID)
	if err != nil {
		return nil
	}
	return run
}
