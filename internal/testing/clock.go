package testing

import (
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/signx/internal/shared"
)

// FakeClock is a [shared.Clock] whose time only moves when Advance is called.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) shared.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer and reports whether it was still pending.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, running due callbacks in deadline order on the calling goroutine.
// Timers scheduled by a callback fire during the same call if they fall within the window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

// nextDue returns the earliest pending timer at or before target; callers hold mu.
func (c *FakeClock) nextDue(target time.Duration) *fakeTimer {
	pending := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			pending = append(pending, t)
		}
	}
	c.timers = pending

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].at == pending[j].at {
			return pending[i].seq < pending[j].seq
		}
		return pending[i].at < pending[j].at
	})

	if len(pending) == 0 || pending[0].at > target {
		return nil
	}
	return pending[0]
}

// Elapsed returns how far the clock has been advanced.
func (c *FakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
