package progress

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fileferry/fileferry/internal/clock"
	"github.com/fileferry/fileferry/internal/events"
	"github.com/fileferry/fileferry/internal/pathutil"
	"github.com/fileferry/fileferry/internal/rate"
	"github.com/fileferry/fileferry/internal/transfer"
	"github.com/fileferry/fileferry/internal/util/format"
	ustrings "github.com/fileferry/fileferry/internal/util/strings"
)

// fileProgress tracks the one file currently in flight.
type fileProgress struct {
	rel   string
	size  int64
	bytes int64
}

// Aggregator is the single writer of a job's progress state. Worker
// callbacks, control calls, and the periodic tick all funnel through
// its lock; readers get lock-free access to the latest Snapshot via
// Current. Bus events are published after the lock is released, so a
// slow subscriber can never stall the copy loop.
//
// Byte counters never move backwards while the job runs: when a partial
// file is discarded its bytes drop out of the raw sum, and the
// published BytesDone holds at its high-water mark instead of stepping
// down. The terminal snapshot of a cancelled or failed job reports only
// the bytes actually retained on disk.
type Aggregator struct {
	jobID  string
	source string
	dest   string

	bus *events.EventBus // may be nil
	clk clock.Clock
	est *rate.Estimator

	mu              sync.Mutex
	status          transfer.JobStatus
	cancelRequested bool
	filesDone       int
	filesSkipped    int
	filesTotal      int
	completedBytes  int64
	bytesTotal      int64
	enumDone        bool
	current         *fileProgress
	highWater       int64
	startedAt       time.Time
	finishedAt      time.Time
	lastError       string
	failureReason   string
	generation      uint64
	lastDiscovery   time.Time

	snap atomic.Pointer[Snapshot]
}

// NewAggregator creates the aggregator for one job and publishes the
// initial pending snapshot. A nil bus disables event publishing; a nil
// clock falls back to the system clock; zero rate config fields fall
// back to the engine defaults.
func NewAggregator(job *transfer.Job, bus *events.EventBus, clk clock.Clock, rc rate.Config) *Aggregator {
	if clk == nil {
		clk = clock.System()
	}
	a := &Aggregator{
		jobID:  job.ID,
		source: job.Spec.Source,
		dest:   job.Spec.Dest,
		bus:    bus,
		clk:    clk,
		est:    rate.NewEstimator(rc, clk),
		status: transfer.JobPending,
	}
	a.mu.Lock()
	snap := a.buildLocked(clk.Now())
	a.mu.Unlock()
	a.snap.Store(&snap)
	return a
}

// Current returns the latest published snapshot. Safe to call from any
// goroutine at any rate; it is a single atomic pointer load.
func (a *Aggregator) Current() Snapshot {
	return *a.snap.Load()
}

// JobID returns the job this aggregator tracks.
func (a *Aggregator) JobID() string { return a.jobID }

// JobStarted moves the job from pending to running.
func (a *Aggregator) JobStarted() error {
	return a.transition(transfer.JobRunning, nil)
}

// Pause moves a running job to paused. The worker stops at the pause
// gate; elapsed time keeps accruing and the rate decays to unknown as
// samples stop arriving.
func (a *Aggregator) Pause() error {
	return a.transition(transfer.JobPaused, nil)
}

// Resume moves a paused job back to running. The rate estimator
// restarts so the stale pre-pause window cannot distort the new rate.
func (a *Aggregator) Resume() error {
	return a.transition(transfer.JobRunning, func() {
		a.est.Reset()
	})
}

// CancelRequested marks that cancellation is underway, switching the
// status text to "Cancelling..." until the worker confirms with
// JobCancelled. The job status itself does not change yet.
func (a *Aggregator) CancelRequested() {
	a.mu.Lock()
	if a.status.IsTerminal() || a.cancelRequested {
		a.mu.Unlock()
		return
	}
	a.cancelRequested = true
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)
}

// JobCompleted marks the job finished: every file was copied or
// skipped. The final snapshot pins the percent to 100 and carries the
// summary text.
func (a *Aggregator) JobCompleted() error {
	return a.transition(transfer.JobCompleted, nil)
}

// JobCancelled marks the job stopped by the user. The final snapshot
// counts only bytes retained on disk; the discarded partial is gone.
func (a *Aggregator) JobCancelled() error {
	return a.transition(transfer.JobCancelled, nil)
}

// JobFailed marks the job dead from an enumeration or job-fatal error.
func (a *Aggregator) JobFailed(err error) error {
	return a.transition(transfer.JobFailed, func() {
		if err != nil {
			a.failureReason = err.Error()
		}
	})
}

// Status returns the job's current lifecycle state.
func (a *Aggregator) Status() transfer.JobStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// transition applies a validated status change, running apply under the
// lock before the new snapshot is built.
func (a *Aggregator) transition(to transfer.JobStatus, apply func()) error {
	a.mu.Lock()
	from := a.status
	if !transfer.ValidTransition(from, to) {
		a.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	a.status = to
	if apply != nil {
		apply()
	}
	if to.IsTerminal() {
		a.finishedAt = a.clk.Now()
		a.current = nil
	}
	if to == transfer.JobRunning && a.startedAt.IsZero() {
		a.startedAt = a.clk.Now()
	}
	reason := a.failureReason
	snap := a.publishLocked()
	a.mu.Unlock()

	if a.bus != nil {
		a.bus.PublishStateChange(a.jobID, from, to, reason)
	}
	a.emitSnapshot(snap)
	return nil
}

// Tick recomputes the time-derived fields (elapsed, rate decay, ETA)
// and republishes. The engine calls it on a steady interval so a
// stalled or paused transfer still shows the passage of time.
func (a *Aggregator) Tick() {
	a.mu.Lock()
	if a.status.IsTerminal() {
		a.mu.Unlock()
		return
	}
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)
}

// EnumerationStarted implements transfer.ProgressSink.
func (a *Aggregator) EnumerationStarted(root string) {
	a.mu.Lock()
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)
}

// TaskDiscovered implements transfer.ProgressSink. Discovery arrives in
// bursts on large trees, so these publishes are coalesced.
func (a *Aggregator) TaskDiscovered(t transfer.FileTask) {
	a.mu.Lock()
	a.filesTotal++
	a.bytesTotal += t.Size
	now := a.clk.Now()
	var snap *Snapshot
	if a.lastDiscovery.IsZero() || now.Sub(a.lastDiscovery) >= coalesceInterval {
		a.lastDiscovery = now
		snap = a.publishLocked()
	}
	a.mu.Unlock()
	a.emitSnapshot(snap)
}

// EnumerationFinished implements transfer.ProgressSink. Totals are
// final from here on.
func (a *Aggregator) EnumerationFinished() {
	a.mu.Lock()
	a.enumDone = true
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)
}

// TaskStarted implements transfer.ProgressSink.
func (a *Aggregator) TaskStarted(t transfer.FileTask) {
	a.mu.Lock()
	a.current = &fileProgress{rel: t.RelPath, size: t.Size, bytes: t.BytesCopied}
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)

	if a.bus != nil {
		a.bus.PublishFile(a.jobID, t, events.FileStarted, "")
	}
}

// TaskProgress implements transfer.ProgressSink. The worker already
// coalesces these to its sample interval.
func (a *Aggregator) TaskProgress(t transfer.FileTask) {
	a.mu.Lock()
	if a.current == nil || a.current.rel != t.RelPath {
		a.current = &fileProgress{rel: t.RelPath}
	}
	a.current.size = t.Size
	a.current.bytes = t.BytesCopied
	a.est.Observe(a.completedBytes + t.BytesCopied)
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)
}

// TaskCompleted implements transfer.ProgressSink.
func (a *Aggregator) TaskCompleted(t transfer.FileTask) {
	a.mu.Lock()
	a.filesDone++
	a.completedBytes += t.Size
	a.current = nil
	a.est.Observe(a.completedBytes)
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)

	if a.bus != nil {
		a.bus.PublishFile(a.jobID, t, events.FileCompleted, "")
	}
}

// TaskSkipped implements transfer.ProgressSink. Covers both vanished
// sources and per-file failures; the skipped file's bytes stay in
// BytesTotal because totals are fixed once enumeration finishes.
func (a *Aggregator) TaskSkipped(t transfer.FileTask, err error) {
	a.mu.Lock()
	a.filesSkipped++
	if err != nil {
		a.lastError = err.Error()
	}
	a.current = nil
	snap := a.publishLocked()
	a.mu.Unlock()
	a.emitSnapshot(snap)

	errText := ""
	if err != nil {
		errText = err.Error()
	}
	if a.bus != nil {
		a.bus.PublishFile(a.jobID, t, events.FileSkipped, errText)
	}
}

// coalesceInterval bounds how often discovery bursts republish.
const coalesceInterval = 100 * time.Millisecond

// publishLocked rebuilds the snapshot under the caller's lock and
// stores it for lock-free readers. It returns the snapshot so the
// caller can emit the bus event after unlocking.
func (a *Aggregator) publishLocked() *Snapshot {
	a.generation++
	snap := a.buildLocked(a.clk.Now())
	a.snap.Store(&snap)
	return &snap
}

func (a *Aggregator) emitSnapshot(snap *Snapshot) {
	if snap == nil || a.bus == nil {
		return
	}
	a.bus.Publish(NewSnapshotEvent(*snap))
}

// buildLocked computes a full snapshot from current state. Callers hold
// the lock.
func (a *Aggregator) buildLocked(now time.Time) Snapshot {
	snap := Snapshot{
		JobID:           a.jobID,
		Status:          a.status,
		Source:          a.source,
		Dest:            a.dest,
		FilesDone:       a.filesDone,
		FilesSkipped:    a.filesSkipped,
		FilesTotal:      a.filesTotal,
		BytesTotal:      a.bytesTotal,
		EnumerationDone: a.enumDone,
		StartedAt:       a.startedAt,
		FinishedAt:      a.finishedAt,
		LastError:       a.lastError,
		FailureReason:   a.failureReason,
		Generation:      a.generation,
	}

	bytesDone := a.completedBytes
	if a.current != nil {
		snap.CurrentFile = a.current.rel
		snap.CurrentFileSize = a.current.size
		snap.CurrentFileBytes = a.current.bytes
		bytesDone += a.current.bytes
	}
	if a.status.IsTerminal() {
		// Discarded partials are off the disk; report what remains.
		a.highWater = bytesDone
	} else if bytesDone > a.highWater {
		a.highWater = bytesDone
	} else {
		bytesDone = a.highWater
	}
	snap.BytesDone = bytesDone

	if !a.startedAt.IsZero() {
		end := now
		if !a.finishedAt.IsZero() {
			end = a.finishedAt
		}
		snap.Elapsed = end.Sub(a.startedAt)
	}

	snap.Percent = a.percentLocked(bytesDone)

	if !a.status.IsTerminal() {
		est := a.est.Estimate(a.bytesTotal - bytesDone)
		snap.Rate = est.BytesPerSec
		// An ETA against a still-growing total would only mislead.
		if a.enumDone {
			snap.ETA = est.ETA
			snap.ETAKnown = est.ETAKnown
		}
	}

	snap.StatusText = a.statusTextLocked()
	return snap
}

func (a *Aggregator) percentLocked(bytesDone int64) int {
	if a.status == transfer.JobCompleted {
		return 100
	}
	if !a.enumDone {
		return 0
	}
	if a.bytesTotal > 0 {
		p := int(bytesDone * 100 / a.bytesTotal)
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		return p
	}
	// A tree of empty files still makes progress, counted by file.
	if a.filesTotal > 0 {
		p := (a.filesDone + a.filesSkipped) * 100 / a.filesTotal
		if p > 100 {
			p = 100
		}
		return p
	}
	return 0
}

func (a *Aggregator) statusTextLocked() string {
	switch a.status {
	case transfer.JobCompleted:
		text := fmt.Sprintf("%d of %d files copied", a.filesDone, a.filesTotal)
		if a.filesSkipped > 0 {
			text += fmt.Sprintf(", %d skipped", a.filesSkipped)
		}
		return text
	case transfer.JobCancelled:
		return "Transfer cancelled"
	case transfer.JobFailed:
		return "Transfer failed: " + a.failureReason
	case transfer.JobPending:
		return "Waiting to start..."
	}

	if a.cancelRequested {
		return "Cancelling..."
	}
	if a.status == transfer.JobPaused {
		return "Paused"
	}
	if a.current != nil {
		return fmt.Sprintf("Copying %s...", ustrings.Truncate(filepath.Base(a.current.rel), 48))
	}
	if !a.enumDone {
		return fmt.Sprintf("Scanning %s...", pathutil.ShortenForDisplay(a.source, 48))
	}
	return fmt.Sprintf("Scan complete: %d %s, %s",
		a.filesTotal, ustrings.Pluralize("file", int64(a.filesTotal)), format.Bytes(a.bytesTotal))
}
