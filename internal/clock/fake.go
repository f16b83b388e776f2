package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Time only moves when
// Advance is called; AfterFunc callbacks fire synchronously inside
// Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// NewFake returns a Fake clock starting at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Since returns the time elapsed on the fake's timeline since t.
func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

// AfterFunc registers fn to run once the fake has advanced past d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{f: f, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers in deadline
// order. Callbacks run with no Fake locks held, so they may register
// new timers; newly registered timers that fall within the advance
// window fire as well.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var next *fakeTimer
		for _, t := range f.timers {
			if t.fired || t.stopped || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		if next.deadline.After(f.now) {
			f.now = next.deadline
		}
		next.fired = true
		fn := next.fn
		f.mu.Unlock()

		fn()
	}
}

type fakeTimer struct {
	f        *Fake
	deadline time.Time
	fn       func()
	fired    bool
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
