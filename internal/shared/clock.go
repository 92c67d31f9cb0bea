package shared

import "time"

// Timer is a handle to a scheduled callback.
//
// [time.Timer] satisfies it.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Production code uses [SystemClock]; tests substitute a manually advanced clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is a [Clock] backed by [time.AfterFunc].
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
