package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
	"github.com/desertthunder/signx/internal/tasks"
)

// Processor submits a video with its expected labels. [services.ProcessService] implements it.
type Processor interface {
	Process(ctx context.Context, candidate *models.UploadCandidate, expected *labels.Set) (*models.Acknowledgment, error)
}

// Retriever reads processed artifacts. [services.ResultService] implements it.
type Retriever interface {
	FetchLatest(ctx context.Context) (*models.Artifact, error)
	PlaybackReference(artifactID string) string
	Download(ctx context.Context, artifactID, dir string) (string, error)
}

// Recorder keeps a history of acknowledged submissions. [repositories.RunRepository] implements it.
type Recorder interface {
	Record(run *models.Run) error
	LatestFor(artifactID string) (*models.Run, error)
}

// Opts configures a [Machine]. Processor and Retriever are required.
type Opts struct {
	Processor Processor
	Retriever Retriever
	Simulator *tasks.Simulator
	Recorder  Recorder
	Logger    *log.Logger
	OnChange  func(Snapshot)
}

// Machine owns one workflow session and serializes every transition.
type Machine struct {
	mu sync.Mutex

	processor Processor
	retriever Retriever
	simulator *tasks.Simulator
	recorder  Recorder
	base      *log.Logger
	logger    *log.Logger
	onChange  func(Snapshot)

	selection *labels.Selection
	version   uint64
	closed    bool
	session
}

// session is the state replaced wholesale on Reset.
type session struct {
	id         string
	phase      Phase
	candidate  *models.UploadCandidate
	expected   *labels.Set // frozen at submission, or restored from history
	artifact   *models.Artifact
	progress   int
	status     string
	downloaded string
	lastErr    error
	run        *tasks.Run
	cancel     context.CancelFunc
}

// New creates a machine in SelectingLabels. Call [Machine.Start] to enter the session.
func New(opts Opts) (*Machine, error) {
	if opts.Processor == nil || opts.Retriever == nil {
		return nil, fmt.Errorf("%w: processor and retriever are required", shared.ErrMissingConfig)
	}
	if opts.Simulator == nil {
		opts.Simulator = &tasks.Simulator{}
	}

	m := &Machine{
		processor: opts.Processor,
		retriever: opts.Retriever,
		simulator: opts.Simulator,
		recorder:  opts.Recorder,
		onChange:  opts.OnChange,
		selection: labels.NewSelection(),
	}
	m.session = session{id: shared.GenerateID()}

	m.base = opts.Logger
	if m.base == nil {
		m.base = log.New(io.Discard)
	}
	m.logger = shared.WithLogger(m.base, "session", shortID(m.id))
	return m, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Start asks the retriever once for the most recent artifact. When one exists the session begins in
// Completed with that artifact; otherwise, or when the lookup fails, it stays in SelectingLabels.
// If the user changed the session while the lookup was in flight, the artifact is not resumed.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return shared.ErrSessionClosed
	}
	if m.phase != SelectingLabels || m.artifact != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: session already started", shared.ErrInvalidTransition)
	}
	gen, logger, version := m.id, m.logger, m.version
	m.mu.Unlock()

	artifact, err := m.retriever.FetchLatest(ctx)
	if err != nil {
		logger.Warn("could not fetch latest artifact", "err", err)
	}

	var previous *models.Run
	if artifact != nil && m.recorder != nil {
		if previous, err = m.recorder.LatestFor(artifact.ID); err != nil {
			logger.Debug("no recorded run for artifact", "artifact", artifact.ID, "err", err)
			previous = nil
		}
	}

	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		logger.Debug("latest artifact arrived after the session ended")
		return nil
	}
	if artifact == nil || m.phase != SelectingLabels {
		m.mu.Unlock()
		return nil
	}
	if m.version != version {
		m.mu.Unlock()
		logger.Debug("session changed while fetching latest artifact, not resuming", "artifact", artifact.ID)
		return nil
	}

	m.artifact = artifact
	m.progress = 100
	m.phase = Completed
	if previous != nil {
		m.expected = previous.Expected().Clone()
		if artifact.Detected().Len() == 0 {
			m.artifact.DetectedLabels = previous.Detected().Clone()
		}
	}
	m.logger.Info("resumed with latest artifact", "artifact", artifact.ID)
	m.commit()
	return nil
}

// stale reports whether work started under gen no longer belongs to the live session. Callers hold mu.
func (m *Machine) stale(gen string) bool {
	return m.closed || m.id != gen
}

// commit publishes the current state and releases mu. Callers hold mu.
func (m *Machine) commit() {
	m.version++
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(snap)
	}
}

// ToggleLabel flips whether label is expected. Only allowed while selecting labels.
func (m *Machine) ToggleLabel(label string) (bool, error) {
	m.mu.Lock()
	if err := m.require(SelectingLabels); err != nil {
		m.mu.Unlock()
		return false, err
	}
	on, err := m.selection.Toggle(label)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	m.commit()
	return on, nil
}

// require checks the session is open and in one of phases. Callers hold mu.
func (m *Machine) require(phases ...Phase) error {
	if m.closed {
		return shared.ErrSessionClosed
	}
	for _, p := range phases {
		if m.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: not allowed while %s", shared.ErrInvalidTransition, m.phase)
}

// Advance moves from label selection to file selection. With no expected labels it does nothing.
func (m *Machine) Advance() error {
	m.mu.Lock()
	if err := m.require(SelectingLabels); err != nil {
		m.mu.Unlock()
		return err
	}
	if !m.selection.Any() {
		m.mu.Unlock()
		return nil
	}
	m.phase = SelectingFile
	m.commit()
	return nil
}

// Back returns to label selection and discards the chosen file.
func (m *Machine) Back() error {
	m.mu.Lock()
	if err := m.require(SelectingFile, Failed); err != nil {
		m.mu.Unlock()
		return err
	}
	m.candidate = nil
	m.expected = nil
	m.lastErr = nil
	m.phase = SelectingLabels
	m.commit()
	return nil
}

// PickFile sets the file to submit, replacing any previous choice.
func (m *Machine) PickFile(candidate *models.UploadCandidate) error {
	m.mu.Lock()
	if err := m.require(SelectingFile, Failed); err != nil {
		m.mu.Unlock()
		return err
	}
	if candidate == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no file selected", shared.ErrValidation)
	}
	m.candidate = candidate
	m.lastErr = nil
	m.phase = SelectingFile
	m.commit()
	return nil
}

// Submit sends the chosen file and expected labels and blocks until the service answers.
//
// On acknowledgment the session moves to AwaitingCompletion and the progress estimate starts.
// On failure it moves to Failed and the error is returned. An answer that arrives after the session
// was reset or left changes nothing and is reported as [shared.ErrSessionClosed].
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed && m.phase.InFlight() {
		m.mu.Unlock()
		return shared.ErrSubmissionInFlight
	}
	if err := m.require(SelectingFile, Failed); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.candidate == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no file selected", shared.ErrValidation)
	}
	if !m.selection.Any() {
		m.mu.Unlock()
		return fmt.Errorf("%w: no expected labels", shared.ErrValidation)
	}

	candidate := m.candidate
	expected := m.selection.Expected()
	reqCtx, cancel := context.WithCancel(ctx)
	gen, logger := m.id, m.logger

	m.candidate = nil
	m.expected = expected
	m.lastErr = nil
	m.progress = 0
	m.status = ""
	m.cancel = cancel
	m.phase = Submitting
	m.logger.Info("submitting", "file", candidate.Name(), "expected", expected.String())
	m.commit()

	ack, err := m.processor.Process(reqCtx, candidate, expected)
	cancel()

	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		logger.Debug("submission answered after the session ended", "err", err)
		return shared.ErrSessionClosed
	}
	m.cancel = nil

	if err != nil {
		m.lastErr = err
		m.expected = nil
		m.phase = Failed
		m.logger.Error("submission failed", "err", err)
		m.commit()
		return err
	}

	artifact := ack.Artifact()
	m.artifact = artifact
	m.phase = AwaitingCompletion
	m.status = tasks.StatusText(0)
	m.run = m.simulator.Start(
		func(u tasks.ProgressUpdate) { m.onProgress(gen, u) },
		func() { m.onProcessed(gen) },
	)
	m.logger.Info("submission acknowledged", "artifact", artifact.ID, "detected", artifact.Detected().String())
	m.commit()

	m.record(logger, models.NewRun(artifact.ID, candidate.Name(), expected, artifact.Detected()))
	return nil
}

func (m *Machine) record(logger *log.Logger, run *models.Run) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(run); err != nil {
		logger.Warn("could not record run", "artifact", run.ArtifactID(), "err", err)
	}
}

func (m *Machine) onProgress(gen string, u tasks.ProgressUpdate) {
	m.mu.Lock()
	if m.stale(gen) || m.phase != AwaitingCompletion || u.Step < m.progress {
		m.mu.Unlock()
		return
	}
	m.progress = min(u.Step, 100)
	m.status = u.Message
	m.commit()
}

func (m *Machine) onProcessed(gen string) {
	m.mu.Lock()
	if m.stale(gen) || m.phase != AwaitingCompletion {
		m.mu.Unlock()
		return
	}
	m.progress = 100
	m.run = nil
	m.phase = Completed
	m.logger.Info("processing complete", "artifact", m.artifact.ID)
	m.commit()
}

// Download saves the completed artifact into dir. A failure keeps the result and can be retried.
func (m *Machine) Download(ctx context.Context, dir string) (string, error) {
	m.mu.Lock()
	if err := m.require(Completed); err != nil {
		m.mu.Unlock()
		return "", err
	}
	if m.artifact == nil {
		m.mu.Unlock()
		return "", shared.ErrNoArtifact
	}
	gen := m.id
	id := m.artifact.ID
	m.mu.Unlock()

	path, err := m.retriever.Download(ctx, id, dir)

	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		if err == nil {
			return path, nil
		}
		return "", err
	}
	if err != nil {
		m.lastErr = err
		m.logger.Error("download failed", "artifact", id, "err", err)
		m.commit()
		return "", err
	}
	m.lastErr = nil
	m.downloaded = path
	m.logger.Info("downloaded", "artifact", id, "path", path)
	m.commit()
	return path, nil
}

// Reset abandons the current session and starts a new one with an empty selection.
// Pending timers are stopped and any in-flight answer will be ignored.
func (m *Machine) Reset() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return shared.ErrSessionClosed
	}
	m.teardown()
	m.selection.Clear()
	m.session = session{id: shared.GenerateID(), phase: SelectingLabels}
	m.logger = shared.WithLogger(m.base, "session", shortID(m.id))
	m.logger.Debug("session reset")
	m.commit()
	return nil
}

// Leave ends the session. Timers stop, in-flight requests are cancelled and nothing is published afterwards.
func (m *Machine) Leave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.teardown()
	m.closed = true
	m.logger.Debug("session closed")
}

// teardown stops the progress estimate and cancels any request. Callers hold mu.
func (m *Machine) teardown() {
	if m.run != nil {
		m.run.Cancel()
		m.run = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Snapshot returns a copy of the session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Comparison returns the expected/detected comparison once the session is Completed.
func (m *Machine) Comparison() (labels.Comparison, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != Completed || m.artifact == nil {
		return labels.Comparison{}, false
	}
	return labels.Compare(m.expectedLocked(), m.artifact.Detected()), true
}

// expectedLocked returns the labels the session compares against. Callers hold mu.
func (m *Machine) expectedLocked() *labels.Set {
	if m.expected != nil {
		return m.expected
	}
	return m.selection.Expected()
}

// IsExpected reports whether label is currently marked in the selection.
func (m *Machine) IsExpected(label string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection.IsExpected(label)
}

// ErrorKind names the class of err for display.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrValidation):
		return "validation"
	case errors.Is(err, shared.ErrApplication):
		return "application"
	case errors.Is(err, shared.ErrTransport):
		return "transport"
	default:
		return "error"
	}
}
