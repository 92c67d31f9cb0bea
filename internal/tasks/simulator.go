package tasks

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/desertthunder/signx/internal/shared"
)

const (
	DefaultTickInterval = time.Second
	DefaultDeadline     = 10 * time.Second
	DefaultMaxIncrement = 20
	DefaultCeiling      = 99
)

// Simulator estimates processing progress while a submission is outstanding.
//
// Zero fields fall back to the package defaults.
type Simulator struct {
	TickInterval time.Duration
	Deadline     time.Duration
	MaxIncrement int
	Ceiling      int
	Clock        shared.Clock
	IntN         func(n int) int // returns a value in [0, n)
}

// NewSimulator builds a simulator from the [progress] config section.
func NewSimulator(cfg shared.ProgressConfig) *Simulator {
	return &Simulator{
		TickInterval: cfg.TickInterval,
		Deadline:     cfg.Deadline,
		MaxIncrement: cfg.MaxIncrement,
	}
}

func (s *Simulator) withDefaults() Simulator {
	c := *s
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.MaxIncrement <= 0 {
		c.MaxIncrement = DefaultMaxIncrement
	}
	if c.Ceiling <= 0 || c.Ceiling > 100 {
		c.Ceiling = DefaultCeiling
	}
	if c.Clock == nil {
		c.Clock = shared.SystemClock{}
	}
	if c.IntN == nil {
		c.IntN = rand.IntN
	}
	return c
}

// Run is one progress estimate. It is finished once completed or cancelled.
type Run struct {
	mu         sync.Mutex
	cfg        Simulator
	value      int
	done       bool
	tick       shared.Timer
	deadline   shared.Timer
	onUpdate   func(ProgressUpdate)
	onComplete func()
}

// Start begins a new estimate at 0.
//
// onUpdate receives every new value, including the final 100; onComplete is called once after it.
// Neither is called with the run's lock held, and neither is called after the run has finished.
func (s *Simulator) Start(onUpdate func(ProgressUpdate), onComplete func()) *Run {
	r := &Run{cfg: s.withDefaults(), onUpdate: onUpdate, onComplete: onComplete}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadline = r.cfg.Clock.AfterFunc(r.cfg.Deadline, r.finish)
	r.tick = r.cfg.Clock.AfterFunc(r.cfg.TickInterval, r.advance)
	return r
}

func (r *Run) advance() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.value = min(r.value+1+r.cfg.IntN(r.cfg.MaxIncrement), r.cfg.Ceiling)
	update := processingUpdate(r.value)
	r.tick = r.cfg.Clock.AfterFunc(r.cfg.TickInterval, r.advance)
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(update)
	}
}

func (r *Run) finish() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.value = 100
	if r.tick != nil {
		r.tick.Stop()
	}
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(finishedUpdate())
	}
	if r.onComplete != nil {
		r.onComplete()
	}
}

// Cancel stops both timers. Calling it more than once, or after completion, is harmless.
func (r *Run) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	if r.tick != nil {
		r.tick.Stop()
	}
	if r.deadline != nil {
		r.deadline.Stop()
	}
}

// Value returns the current estimate.
func (r *Run) Value() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Done reports whether the run completed or was cancelled.
func (r *Run) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
