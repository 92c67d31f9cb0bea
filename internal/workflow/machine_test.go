package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
	"github.com/desertthunder/signx/internal/tasks"
	tu "github.com/desertthunder/signx/internal/testing"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, c *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error)
}

func (f *fakeProcessor) Process(ctx context.Context, c *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, c, expected)
	}
	return &models.Acknowledgment{
		Success:        true,
		Filename:       "processed_video_1.mp4",
		DetectedLabels: labels.NewSet("Stop", "Speed Limit 50"),
	}, nil
}

func (f *fakeProcessor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRetriever struct {
	latest    *models.Artifact
	latestErr error
	fetch     func(ctx context.Context) (*models.Artifact, error)
	download  func(id, dir string) (string, error)
}

func (f *fakeRetriever) FetchLatest(ctx context.Context) (*models.Artifact, error) {
	if f.fetch != nil {
		return f.fetch(ctx)
	}
	return f.latest, f.latestErr
}

func (f *fakeRetriever) PlaybackReference(id string) string {
	return "http://localhost:5000/processed/" + id
}

func (f *fakeRetriever) Download(ctx context.Context, id, dir string) (string, error) {
	if f.download != nil {
		return f.download(id, dir)
	}
	return dir + "/" + id, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []*models.Run
}

func (f *fakeRecorder) Record(run *models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRecorder) LatestFor(artifactID string) (*models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].ArtifactID() == artifactID {
			return f.runs[i], nil
		}
	}
	return nil, fmt.Errorf("run not found: %s", artifactID)
}

type harness struct {
	m         *Machine
	clock     *tu.FakeClock
	processor *fakeProcessor
	retriever *fakeRetriever
	recorder  *fakeRecorder

	mu    sync.Mutex
	snaps []Snapshot
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     tu.NewFakeClock(),
		processor: &fakeProcessor{},
		retriever: &fakeRetriever{},
		recorder:  &fakeRecorder{},
	}
	m, err := New(Opts{
		Processor: h.processor,
		Retriever: h.retriever,
		Recorder:  h.recorder,
		Simulator: &tasks.Simulator{
			TickInterval: time.Second,
			Deadline:     10 * time.Second,
			MaxIncrement: 20,
			Clock:        h.clock,
			IntN:         func(n int) int { return n / 2 },
		},
		OnChange: func(s Snapshot) {
			h.mu.Lock()
			h.snaps = append(h.snaps, s)
			h.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("failed to create machine: %v", err)
	}
	h.m = m
	return h
}

func (h *harness) published() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snaps)
}

func candidate(t *testing.T) *models.UploadCandidate {
	t.Helper()
	c, err := models.NewReaderCandidate("drive.mp4", 6, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("frames")), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// ready brings the machine to SelectingFile with a chosen file and the given labels.
func (h *harness) ready(t *testing.T, expected ...string) {
	t.Helper()
	for _, l := range expected {
		if _, err := h.m.ToggleLabel(l); err != nil {
			t.Fatalf("toggle %s: %v", l, err)
		}
	}
	if err := h.m.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := h.m.PickFile(candidate(t)); err != nil {
		t.Fatalf("pick file: %v", err)
	}
}

func TestMachine(t *testing.T) {
	t.Run("Initial Phase", func(t *testing.T) {
		h := newHarness(t)
		if got := h.m.Snapshot().Phase; got != SelectingLabels {
			t.Errorf("expected SelectingLabels, got %s", got)
		}
	})

	t.Run("Advance Without Labels Is A No-op", func(t *testing.T) {
		h := newHarness(t)
		if err := h.m.Advance(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := h.m.Snapshot().Phase; got != SelectingLabels {
			t.Errorf("expected SelectingLabels, got %s", got)
		}

		h.m.ToggleLabel("Stop")
		h.m.ToggleLabel("Stop")
		h.m.Advance()
		if got := h.m.Snapshot().Phase; got != SelectingLabels {
			t.Errorf("expected SelectingLabels after unmarking, got %s", got)
		}
	})

	t.Run("Advance With Any Label", func(t *testing.T) {
		for _, label := range labels.Catalog() {
			h := newHarness(t)
			h.m.ToggleLabel(label)
			if err := h.m.Advance(); err != nil {
				t.Fatalf("advance with %s: %v", label, err)
			}
			if got := h.m.Snapshot().Phase; got != SelectingFile {
				t.Errorf("expected SelectingFile with %s, got %s", label, got)
			}
		}
	})

	t.Run("Toggle Validation", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.m.ToggleLabel("Roundabout"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}

		h.m.ToggleLabel("Stop")
		h.m.Advance()
		if _, err := h.m.ToggleLabel("Yield"); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition outside label selection, got %v", err)
		}
	})

	t.Run("Back Drops Candidate", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop")
		if got := h.m.Snapshot().Candidate; got != "drive.mp4" {
			t.Fatalf("expected candidate drive.mp4, got %q", got)
		}

		if err := h.m.Back(); err != nil {
			t.Fatal(err)
		}
		snap := h.m.Snapshot()
		if snap.Phase != SelectingLabels || snap.Candidate != "" {
			t.Errorf("expected SelectingLabels without candidate, got %s %q", snap.Phase, snap.Candidate)
		}
		if !h.m.IsExpected("Stop") {
			t.Error("going back should keep the selection")
		}

		h.m.Advance()
		if err := h.m.Submit(context.Background()); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation without a candidate, got %v", err)
		}
		if h.processor.Calls() != 0 {
			t.Error("processor should not be called without a candidate")
		}
	})

	t.Run("PickFile Requires A File", func(t *testing.T) {
		h := newHarness(t)
		h.m.ToggleLabel("Stop")
		h.m.Advance()
		if err := h.m.PickFile(nil); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("Full Run", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop", "Yield")

		var sent *labels.Set
		h.processor.fn = func(ctx context.Context, c *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error) {
			sent = expected
			return &models.Acknowledgment{Success: true, Filename: "processed_video_1.mp4", DetectedLabels: labels.NewSet("Stop", "Speed Limit 50")}, nil
		}

		if err := h.m.Submit(context.Background()); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if !sent.Equal(labels.NewSet("Stop", "Yield")) {
			t.Errorf("unexpected labels sent %v", sent)
		}

		snap := h.m.Snapshot()
		if snap.Phase != AwaitingCompletion {
			t.Fatalf("expected AwaitingCompletion, got %s", snap.Phase)
		}
		if snap.Artifact == nil || snap.Artifact.ID != "processed_video_1.mp4" {
			t.Fatalf("expected artifact from acknowledgment, got %+v", snap.Artifact)
		}
		if snap.Candidate != "" {
			t.Error("candidate should not survive submission")
		}
		if snap.Reference != "http://localhost:5000/processed/processed_video_1.mp4" {
			t.Errorf("unexpected reference %s", snap.Reference)
		}
		if _, ok := h.m.Comparison(); ok {
			t.Error("comparison should not be presentable before completion")
		}

		prev := 0
		for i := 0; i < 9; i++ {
			h.clock.Advance(time.Second)
			s := h.m.Snapshot()
			if s.Progress < prev || s.Progress > 99 {
				t.Errorf("tick %d: progress %d (previous %d)", i+1, s.Progress, prev)
			}
			if s.Phase != AwaitingCompletion {
				t.Errorf("tick %d: completed early", i+1)
			}
			prev = s.Progress
		}

		h.clock.Advance(time.Second)
		snap = h.m.Snapshot()
		if snap.Phase != Completed || snap.Progress != 100 {
			t.Fatalf("expected Completed at 100, got %s at %d", snap.Phase, snap.Progress)
		}

		cmp, ok := h.m.Comparison()
		if !ok {
			t.Fatal("expected comparison once completed")
		}
		want := []labels.Entry{
			{Label: "Stop", Status: labels.Both, InExpected: true, InDetected: true},
			{Label: "Yield", Status: labels.ExpectedOnly, InExpected: true},
			{Label: "Speed Limit 50", Status: labels.DetectedOnly, InDetected: true},
		}
		if len(cmp.Entries) != len(want) {
			t.Fatalf("unexpected comparison %+v", cmp.Entries)
		}
		for i := range want {
			if cmp.Entries[i] != want[i] {
				t.Errorf("entry %d = %+v, want %+v", i, cmp.Entries[i], want[i])
			}
		}

		if len(h.recorder.runs) != 1 || h.recorder.runs[0].SourceName() != "drive.mp4" {
			t.Errorf("expected one recorded run, got %d", len(h.recorder.runs))
		}
	})

	t.Run("Second Submission Refused", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop")

		release := make(chan struct{})
		entered := make(chan struct{})
		h.processor.fn = func(ctx context.Context, c *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error) {
			close(entered)
			<-release
			return &models.Acknowledgment{Success: true, Filename: "a.mp4"}, nil
		}

		done := make(chan error, 1)
		go func() { done <- h.m.Submit(context.Background()) }()
		<-entered

		if got := h.m.Snapshot().Phase; got != Submitting {
			t.Fatalf("expected Submitting, got %s", got)
		}
		if err := h.m.Submit(context.Background()); !errors.Is(err, shared.ErrSubmissionInFlight) {
			t.Errorf("expected ErrSubmissionInFlight while submitting, got %v", err)
		}
		if err := h.m.PickFile(candidate(t)); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition while submitting, got %v", err)
		}

		close(release)
		if err := <-done; err != nil {
			t.Fatalf("submit: %v", err)
		}

		if err := h.m.Submit(context.Background()); !errors.Is(err, shared.ErrSubmissionInFlight) {
			t.Errorf("expected ErrSubmissionInFlight while awaiting completion, got %v", err)
		}
		if h.processor.Calls() != 1 {
			t.Errorf("expected exactly one processor call, got %d", h.processor.Calls())
		}
	})

	t.Run("Failure And Retry", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop")

		h.processor.fn = func(ctx context.Context, c *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error) {
			return nil, fmt.Errorf("%w: No video file provided", shared.ErrApplication)
		}
		if err := h.m.Submit(context.Background()); !errors.Is(err, shared.ErrApplication) {
			t.Fatalf("expected ErrApplication, got %v", err)
		}

		snap := h.m.Snapshot()
		if snap.Phase != Failed {
			t.Fatalf("expected Failed, got %s", snap.Phase)
		}
		if !strings.Contains(snap.LastError, "No video file provided") {
			t.Errorf("expected last error recorded, got %q", snap.LastError)
		}
		if snap.Candidate != "" || snap.Progress != 0 {
			t.Errorf("expected indicators cleared, got %q %d", snap.Candidate, snap.Progress)
		}
		if ErrorKind(snap.Err) != "application" {
			t.Errorf("expected application error kind, got %s", ErrorKind(snap.Err))
		}

		if err := h.m.Submit(context.Background()); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation without a new file, got %v", err)
		}

		h.processor.fn = nil
		if err := h.m.PickFile(candidate(t)); err != nil {
			t.Fatal(err)
		}
		if s := h.m.Snapshot(); s.Phase != SelectingFile || s.LastError != "" {
			t.Errorf("expected SelectingFile without error, got %s %q", s.Phase, s.LastError)
		}
		if err := h.m.Submit(context.Background()); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if got := h.m.Snapshot().Phase; got != AwaitingCompletion {
			t.Errorf("expected AwaitingCompletion after retry, got %s", got)
		}
	})

	t.Run("Acknowledgment After Leave", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop")

		release := make(chan struct{})
		entered := make(chan struct{})
		var reqCtx context.Context
		h.processor.fn = func(ctx context.Context, c *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error) {
			reqCtx = ctx
			close(entered)
			<-release
			return &models.Acknowledgment{Success: true, Filename: "late.mp4"}, nil
		}

		done := make(chan error, 1)
		go func() { done <- h.m.Submit(context.Background()) }()
		<-entered

		h.m.Leave()
		before := h.m.Snapshot()
		published := h.published()

		close(release)
		if err := <-done; !errors.Is(err, shared.ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
		if reqCtx.Err() == nil {
			t.Error("expected the request context to be cancelled on leave")
		}

		after := h.m.Snapshot()
		if after.Phase != before.Phase || after.Artifact != nil || after.Version != before.Version {
			t.Errorf("state changed after leave: %+v", after)
		}
		if h.published() != published {
			t.Error("snapshot published after leave")
		}
		if len(h.recorder.runs) != 0 {
			t.Error("late acknowledgment should not be recorded")
		}

		if _, err := h.m.ToggleLabel("Stop"); !errors.Is(err, shared.ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed after leave, got %v", err)
		}
		h.m.Leave()
	})

	t.Run("Acknowledgment After Reset", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop")

		release := make(chan struct{})
		entered := make(chan struct{})
		h.processor.fn = func(ctx context.Context, c *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error) {
			close(entered)
			<-release
			return &models.Acknowledgment{Success: true, Filename: "late.mp4"}, nil
		}

		done := make(chan error, 1)
		go func() { done <- h.m.Submit(context.Background()) }()
		<-entered

		oldSession := h.m.Snapshot().Session
		if err := h.m.Reset(); err != nil {
			t.Fatal(err)
		}
		close(release)
		<-done

		snap := h.m.Snapshot()
		if snap.Session == oldSession {
			t.Error("expected a new session after reset")
		}
		if snap.Phase != SelectingLabels || snap.Artifact != nil {
			t.Errorf("late acknowledgment changed the new session: %+v", snap)
		}
		if h.m.IsExpected("Stop") {
			t.Error("reset should clear the selection")
		}
	})

	t.Run("Leave Cancels Timers", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop")
		if err := h.m.Submit(context.Background()); err != nil {
			t.Fatal(err)
		}
		h.clock.Advance(3 * time.Second)
		progress := h.m.Snapshot().Progress

		h.m.Leave()
		if h.clock.Pending() != 0 {
			t.Errorf("expected no pending timers after leave, got %d", h.clock.Pending())
		}

		h.clock.Advance(time.Minute)
		snap := h.m.Snapshot()
		if snap.Progress != progress || snap.Phase != AwaitingCompletion {
			t.Errorf("progress changed after leave: %d %s", snap.Progress, snap.Phase)
		}
	})

	t.Run("Reset Cancels Timers", func(t *testing.T) {
		h := newHarness(t)
		h.ready(t, "Stop")
		h.m.Submit(context.Background())
		h.m.Reset()

		if h.clock.Pending() != 0 {
			t.Errorf("expected no pending timers after reset, got %d", h.clock.Pending())
		}
		h.clock.Advance(time.Minute)
		if got := h.m.Snapshot().Phase; got != SelectingLabels {
			t.Errorf("expected SelectingLabels, got %s", got)
		}
	})

	t.Run("Returning Session", func(t *testing.T) {
		h := newHarness(t)
		h.retriever.latest = &models.Artifact{ID: "processed_video_7.mp4", DetectedLabels: labels.NewSet("Red Light")}

		if err := h.m.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		snap := h.m.Snapshot()
		if snap.Phase != Completed || snap.Artifact.ID != "processed_video_7.mp4" {
			t.Fatalf("expected Completed with latest artifact, got %s %+v", snap.Phase, snap.Artifact)
		}
		if !snap.Artifact.Detected().Has("Red Light") {
			t.Error("expected detected labels from the latest artifact")
		}
		if h.processor.Calls() != 0 {
			t.Error("returning session should not submit")
		}
		if _, ok := h.m.Comparison(); !ok {
			t.Error("expected comparison to be presentable")
		}
	})

	t.Run("Returning Session Restores Recorded Labels", func(t *testing.T) {
		h := newHarness(t)
		h.recorder.Record(models.NewRun("processed_video_7.mp4", "drive.mp4", labels.NewSet("Stop", "Yield"), labels.NewSet("Stop")))
		h.retriever.latest = &models.Artifact{ID: "processed_video_7.mp4"}

		h.m.Start(context.Background())

		cmp, ok := h.m.Comparison()
		if !ok {
			t.Fatal("expected comparison")
		}
		if len(cmp.Matched()) != 1 || len(cmp.Missed()) != 1 {
			t.Errorf("expected recorded expected/detected labels, got %+v", cmp.Entries)
		}
		if h.m.IsExpected("Stop") {
			t.Error("restoring history should not touch the selection")
		}
	})

	t.Run("Selection During Latest Lookup", func(t *testing.T) {
		h := newHarness(t)
		fetching := make(chan struct{})
		release := make(chan struct{})
		h.retriever.fetch = func(ctx context.Context) (*models.Artifact, error) {
			close(fetching)
			<-release
			return &models.Artifact{ID: "7_out.mp4", DetectedLabels: labels.NewSet("Stop")}, nil
		}

		done := make(chan error, 1)
		go func() { done <- h.m.Start(context.Background()) }()

		<-fetching
		if _, err := h.m.ToggleLabel("Yield"); err != nil {
			t.Fatalf("toggle while starting: %v", err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		snap := h.m.Snapshot()
		if snap.Phase != SelectingLabels {
			t.Fatalf("expected SelectingLabels, got %s", snap.Phase)
		}
		if snap.Artifact != nil {
			t.Errorf("expected no artifact, got %s", snap.Artifact.ID)
		}
		if !h.m.IsExpected("Yield") || !snap.Expected.Equal(labels.NewSet("Yield")) {
			t.Errorf("expected the selection to survive, got %v", snap.Expected.Labels())
		}
	})

	t.Run("No Prior Artifact", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
		}{
			{name: "None Available"},
			{name: "Fetch Failure", err: fmt.Errorf("%w: connection refused", shared.ErrTransport)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				h.retriever.latestErr = tt.err
				if err := h.m.Start(context.Background()); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got := h.m.Snapshot().Phase; got != SelectingLabels {
					t.Errorf("expected SelectingLabels, got %s", got)
				}
			})
		}
	})

	t.Run("Download", func(t *testing.T) {
		h := newHarness(t)
		h.retriever.latest = &models.Artifact{ID: "processed_video_7.mp4"}
		h.m.Start(context.Background())

		attempts := 0
		h.retriever.download = func(id, dir string) (string, error) {
			attempts++
			if attempts == 1 {
				return "", fmt.Errorf("%w: connection reset", shared.ErrTransport)
			}
			return dir + "/" + id, nil
		}

		if _, err := h.m.Download(context.Background(), "out"); !errors.Is(err, shared.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
		snap := h.m.Snapshot()
		if snap.Phase != Completed || snap.LastError == "" {
			t.Errorf("expected Completed with an error, got %s %q", snap.Phase, snap.LastError)
		}

		path, err := h.m.Download(context.Background(), "out")
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		snap = h.m.Snapshot()
		if path != "out/processed_video_7.mp4" || snap.Downloaded != path || snap.LastError != "" {
			t.Errorf("unexpected state after retry: %q %+v", path, snap)
		}
	})

	t.Run("Download Before Completion", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.m.Download(context.Background(), "out"); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("Missing Dependencies", func(t *testing.T) {
		if _, err := New(Opts{}); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestPhase(t *testing.T) {
	names := map[Phase]string{
		SelectingLabels:    "selecting_labels",
		SelectingFile:      "selecting_file",
		Submitting:         "submitting",
		AwaitingCompletion: "awaiting_completion",
		Completed:          "completed",
		Failed:             "failed",
	}
	for p, want := range names {
		if p.String() != want {
			t.Errorf("%d.String() = %q, want %q", p, p.String(), want)
		}
	}
	if !Submitting.InFlight() || !AwaitingCompletion.InFlight() || Failed.InFlight() {
		t.Error("unexpected InFlight classification")
	}
}
