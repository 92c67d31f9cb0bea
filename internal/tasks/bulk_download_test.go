package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
	tu "github.com/desertthunder/signx/internal/testing"
)

type mockDownloader struct {
	mu     sync.Mutex
	fail   map[string]bool
	called []string
}

func (m *mockDownloader) Download(ctx context.Context, artifactID, dir string) (string, error) {
	m.mu.Lock()
	m.called = append(m.called, artifactID)
	m.mu.Unlock()

	if m.fail[artifactID] {
		return "", errors.New("connection reset")
	}
	path := filepath.Join(dir, artifactID)
	return path, os.WriteFile(path, []byte(artifactID), 0o644)
}

func testArtifacts() []*models.Artifact {
	return []*models.Artifact{
		{ID: "processed_video_1.mp4", DetectedLabels: labels.NewSet("Stop")},
		{ID: "processed_video_2.mp4", DetectedLabels: labels.NewSet("Yield")},
		{ID: "processed_video_3.mp4"},
	}
}

func TestBulkDownload(t *testing.T) {
	t.Run("All Succeed", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		dl := &mockDownloader{}
		prog := make(chan ProgressUpdate, 32)

		result, err := BulkDownload(context.Background(), prog, dl, testArtifacts(), BulkDownloadOpts{
			OutputDir: dir,
			RateLimit: 1000,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Total != 3 || result.Successful != 3 || result.Failed != 0 {
			t.Errorf("unexpected counts %+v", result)
		}
		if len(dl.called) != 3 {
			t.Errorf("expected 3 downloads, got %d", len(dl.called))
		}

		tu.AssertFileExists(t, result.ManifestPath)
		manifest := tu.MustReadFile(t, result.ManifestPath)
		if !strings.Contains(manifest, `"successful": 3`) {
			t.Errorf("manifest missing counts: %s", manifest)
		}

		close(prog)
		var phases []Phase
		for u := range prog {
			phases = append(phases, u.Phase)
		}
		if len(phases) == 0 || phases[0] != FetchListing {
			t.Errorf("expected listing update first, got %v", phases)
		}
	})

	t.Run("Partial Failure", func(t *testing.T) {
		dl := &mockDownloader{fail: map[string]bool{"processed_video_2.mp4": true}}

		result, err := BulkDownload(context.Background(), nil, dl, testArtifacts(), BulkDownloadOpts{
			OutputDir:  t.TempDir(),
			NumWorkers: 2,
			RateLimit:  1000,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Successful != 2 || result.Failed != 1 {
			t.Errorf("expected 2 successes and 1 failure, got %+v", result)
		}

		for _, r := range result.Results {
			if r.ArtifactID == "processed_video_2.mp4" {
				if r.Success || r.Message == "" {
					t.Errorf("expected recorded failure, got %+v", r)
				}
			}
		}
	})

	t.Run("Reports", func(t *testing.T) {
		dir := t.TempDir()
		result, err := BulkDownload(context.Background(), nil, &mockDownloader{}, testArtifacts(), BulkDownloadOpts{
			OutputDir: dir,
			RateLimit: 1000,
			Format:    "csv",
			Expected: map[string]*labels.Set{
				"processed_video_1.mp4": labels.NewSet("Stop", "Yield"),
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		reports := make([]string, 0, len(result.Results))
		for _, r := range result.Results {
			reports = append(reports, filepath.Base(r.Report))
		}
		sort.Strings(reports)
		want := []string{"processed_video_1_labels.csv", "processed_video_2_labels.csv", "processed_video_3_labels.csv"}
		for i := range want {
			if reports[i] != want[i] {
				t.Errorf("report %d = %s, want %s", i, reports[i], want[i])
			}
		}

		content := tu.MustReadFile(t, filepath.Join(dir, "reports", "processed_video_1_labels.csv"))
		if !strings.Contains(content, "Yield,expected_only,true,false") {
			t.Errorf("report did not use expected labels: %s", content)
		}
	})

	t.Run("Invalid Options", func(t *testing.T) {
		if _, err := BulkDownload(context.Background(), nil, nil, testArtifacts(), BulkDownloadOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if _, err := BulkDownload(context.Background(), nil, &mockDownloader{}, nil, BulkDownloadOpts{OutputDir: t.TempDir(), Format: "yaml"}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := BulkDownload(ctx, nil, &mockDownloader{}, testArtifacts(), BulkDownloadOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if result == nil || result.ManifestPath != "" {
			t.Errorf("expected partial result without manifest, got %+v", result)
		}
	})
}
