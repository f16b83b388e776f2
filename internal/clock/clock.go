// Package clock abstracts the engine's time source so time-dependent logic
// (rate windows, notification expiry, elapsed readouts) can be driven
// deterministically in tests.
package clock

import "time"

// Clock is the time source used throughout the engine. The system
// implementation is backed by time.Now, whose values carry a monotonic
// reading, so durations derived from it never decrease when the wall
// clock jumps.
type Clock interface {
	// Now returns the current time on this clock's timeline.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// AfterFunc waits for d to elapse and then calls f in its own
	// goroutine. The returned Timer can cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether it stopped
	// the timer before the call ran.
	Stop() bool
}

// System returns the real, monotonic system clock.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
