// Package rate estimates transfer throughput and remaining time from
// cumulative byte samples. The estimate combines a time-based sliding
// window with exponential smoothing so the displayed rate tracks recent
// throughput without jumping on every sample.
package rate

import (
	"time"

	"github.com/fileferry/fileferry/internal/clock"
	"github.com/fileferry/fileferry/internal/constants"
)

// Estimate is one rate/ETA reading. When ETAKnown is false the caller
// renders the remaining time as unknown rather than a stale or wild
// number: rates settle only after two time-separated samples, a zero
// rate has no finish time, and an idle transfer has no current rate.
type Estimate struct {
	BytesPerSec float64
	ETA         time.Duration
	ETAKnown    bool
}

// Config tunes an estimator. Zero fields fall back to the engine
// defaults.
type Config struct {
	// Window is the width of the sliding sample window. Time-based, so
	// estimate quality does not depend on how often samples arrive.
	Window time.Duration

	// IdleTimeout is how long without a sample before the rate reads
	// as unknown.
	IdleTimeout time.Duration

	// Alpha is the exponential smoothing weight for the newest
	// windowed rate, in (0, 1].
	Alpha float64
}

// DefaultConfig returns the engine's standard estimator tuning.
func DefaultConfig() Config {
	return Config{
		Window:      constants.RateWindow,
		IdleTimeout: constants.RateIdleTimeout,
		Alpha:       constants.RateSmoothingAlpha,
	}
}

type sample struct {
	t     time.Time
	bytes int64
}

// Estimator turns a stream of cumulative byte counts into a smoothed
// rate and an ETA. It reads time from an injected clock, which on the
// system clock means the monotonic reading inside time.Time, so wall
// clock adjustments cannot produce negative spans.
//
// An Estimator is not safe for concurrent use; the progress aggregator
// serializes all access under its own lock.
type Estimator struct {
	cfg Config
	clk clock.Clock

	samples      []sample
	smoothed     float64
	haveSmoothed bool
	lastObserve  time.Time
}

// NewEstimator creates an estimator. A nil clock falls back to the
// system clock.
func NewEstimator(cfg Config, clk clock.Clock) *Estimator {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = def.Alpha
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Estimator{cfg: cfg, clk: clk}
}

// Observe records the job's cumulative completed byte count. A count
// lower than the previous one means the transfer rolled back (a partial
// file was discarded), which restarts the estimate from scratch.
func (e *Estimator) Observe(cumBytes int64) {
	now := e.clk.Now()

	if n := len(e.samples); n > 0 && cumBytes < e.samples[n-1].bytes {
		e.Reset()
	}
	e.samples = append(e.samples, sample{t: now, bytes: cumBytes})
	e.lastObserve = now

	// Evict samples that fell out of the window, but always keep one
	// sample as the far edge so the window retains its full span.
	cutoff := now.Add(-e.cfg.Window)
	for len(e.samples) >= 2 && !e.samples[1].t.After(cutoff) {
		e.samples = e.samples[1:]
	}

	first := e.samples[0]
	last := e.samples[len(e.samples)-1]
	span := last.t.Sub(first.t)
	if span <= 0 {
		return
	}
	inst := float64(last.bytes-first.bytes) / span.Seconds()
	if inst < 0 {
		inst = 0
	}
	if !e.haveSmoothed {
		e.smoothed = inst
		e.haveSmoothed = true
		return
	}
	e.smoothed = e.cfg.Alpha*inst + (1-e.cfg.Alpha)*e.smoothed
}

// Estimate returns the current rate and the time to copy remainingBytes
// more. The zero Estimate (no rate, ETA unknown) comes back before two
// time-separated samples exist, when the rate is zero, and when no
// sample has arrived within the idle timeout.
func (e *Estimator) Estimate(remainingBytes int64) Estimate {
	var est Estimate
	if e.lastObserve.IsZero() || e.clk.Since(e.lastObserve) > e.cfg.IdleTimeout {
		return est
	}
	if !e.haveSmoothed {
		return est
	}
	est.BytesPerSec = e.smoothed
	if e.smoothed <= 0 || remainingBytes < 0 {
		return est
	}
	est.ETA = time.Duration(float64(remainingBytes) / e.smoothed * float64(time.Second))
	est.ETAKnown = true
	return est
}

// Reset clears all samples and smoothing state, as after a pause long
// enough that the old window no longer says anything useful.
func (e *Estimator) Reset() {
	e.samples = nil
	e.smoothed = 0
	e.haveSmoothed = false
	e.lastObserve = time.Time{}
}
