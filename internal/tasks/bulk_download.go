package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/signx/internal/formatter"
	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
)

// Downloader saves one artifact into a directory. [services.ResultService] implements it.
type Downloader interface {
	Download(ctx context.Context, artifactID, dir string) (string, error)
}

// BulkDownloadOpts contains configuration for bulk artifact downloads.
type BulkDownloadOpts struct {
	OutputDir  string                 // Base output directory (default: signx_download_{epoch})
	NumWorkers int                    // Concurrent workers (default: 3, max 8)
	RateLimit  float64                // Downloads started per second (default: 2)
	Format     string                 // Report format; empty writes no reports
	Expected   map[string]*labels.Set // Expected labels by artifact ID, used for reports
}

// ArtifactDownloadResult is the outcome for a single artifact.
type ArtifactDownloadResult struct {
	ArtifactID string `json:"artifact_id"`
	Path       string `json:"path,omitempty"`
	Report     string `json:"report,omitempty"`
	Success    bool   `json:"success"`
	Error      error  `json:"-"`
	Message    string `json:"error,omitempty"`
}

// BulkDownloadResult summarizes a bulk download.
type BulkDownloadResult struct {
	Total           int                      `json:"total"`
	Successful      int                      `json:"successful"`
	Failed          int                      `json:"failed"`
	OutputDirectory string                   `json:"output_directory"`
	ManifestPath    string                   `json:"-"`
	CreatedAt       time.Time                `json:"created_at"`
	Results         []ArtifactDownloadResult `json:"results"`
}

type downloadJob struct {
	artifact *models.Artifact
}

// BulkDownload saves every artifact concurrently with rate limiting and progress tracking.
//
// Jobs are dispatched through a rate limiter to a fixed pool of workers. Individual failures are
// recorded in the result; the returned error is reserved for setup and manifest failures.
func BulkDownload(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	dl Downloader,
	artifacts []*models.Artifact,
	opts BulkDownloadOpts,
) (*BulkDownloadResult, error) {
	if dl == nil {
		return nil, fmt.Errorf("%w: downloader not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Format != "" && !formatter.ValidFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, opts.Format)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("signx_download_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkDownloadResult{
		Total:           len(artifacts),
		OutputDirectory: opts.OutputDir,
		CreatedAt:       time.Now(),
		Results:         make([]ArtifactDownloadResult, 0, len(artifacts)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan downloadJob)
	results := make(chan ArtifactDownloadResult, len(artifacts))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go downloadWorker(ctx, &wg, dl, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		sendProgress(prog, queuedDownloadsUpdate(len(artifacts)))
		for i, a := range artifacts {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- downloadJob{artifact: a}:
				sendProgress(prog, downloadingUpdate(i+1, len(artifacts), a.ID))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.Successful++
			sendProgress(prog, downloadCompletedUpdate(completed, len(artifacts), res))
		} else {
			result.Failed++
			sendProgress(prog, downloadFailedUpdate(completed, len(artifacts), res))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("bulk download interrupted after %d of %d: %w", completed, len(artifacts), err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "download_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("download completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// downloadWorker is a worker goroutine that downloads artifacts from the jobs channel.
func downloadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	dl Downloader,
	jobs <-chan downloadJob,
	results chan<- ArtifactDownloadResult,
	opts BulkDownloadOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- downloadSingleArtifact(ctx, dl, job, opts)
	}
}

// downloadSingleArtifact saves one artifact and, when requested, its label report.
func downloadSingleArtifact(ctx context.Context, dl Downloader, j downloadJob, opts BulkDownloadOpts) ArtifactDownloadResult {
	result := ArtifactDownloadResult{ArtifactID: j.artifact.ID}

	path, err := dl.Download(ctx, j.artifact.ID, opts.OutputDir)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Message = result.Error.Error()
		return result
	}
	result.Path = path
	result.Success = true

	if opts.Format == "" {
		return result
	}

	report := formatter.NewReport(j.artifact.ID, opts.Expected[j.artifact.ID], j.artifact.Detected())
	reportPath, err := formatter.WriteReport(report, opts.Format, filepath.Join(opts.OutputDir, "reports"))
	if err != nil {
		result.Success = false
		result.Error = fmt.Errorf("report failed: %w", err)
		result.Message = result.Error.Error()
		return result
	}
	result.Report = reportPath
	return result
}
