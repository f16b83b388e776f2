// Package progress folds raw worker callbacks into a single consistent
// view of a job: counters, status text, percent, rate, and ETA. The
// aggregator owns all mutable state; everything it hands out is an
// immutable Snapshot.
package progress

import (
	"time"

	"github.com/fileferry/fileferry/internal/events"
	"github.com/fileferry/fileferry/internal/transfer"
	"github.com/fileferry/fileferry/internal/util/format"
)

// Snapshot is one self-consistent reading of a job's progress. All
// fields were computed under the same lock, so counts, bytes, percent,
// and status text always agree with each other. Snapshots are values;
// readers can hold one as long as they like.
type Snapshot struct {
	JobID  string
	Status transfer.JobStatus

	// StatusText is the display line for the job's current state, such
	// as "Copying report.pdf..." or "12 of 15 files copied, 3 skipped".
	StatusText string

	Source string
	Dest   string

	// CurrentFile is the relative path of the file being copied, empty
	// when no file is in flight.
	CurrentFile      string
	CurrentFileSize  int64
	CurrentFileBytes int64

	// FilesTotal and BytesTotal grow while enumeration runs and are
	// final once EnumerationDone is set. FilesSkipped counts files
	// passed over for any reason, vanished or failed.
	FilesDone       int
	FilesSkipped    int
	FilesTotal      int
	BytesDone       int64
	BytesTotal      int64
	EnumerationDone bool

	// Percent is floor(BytesDone / BytesTotal * 100) clamped to
	// [0, 100]. It stays 0 until totals are final and is forced to 100
	// on completion.
	Percent int

	Elapsed  time.Duration
	Rate     float64 // bytes/sec, 0 when idle or unknown
	ETA      time.Duration
	ETAKnown bool

	StartedAt  time.Time
	FinishedAt time.Time

	// LastError is the most recent per-file failure, kept for display
	// while the job continues. FailureReason is set only on a failed
	// job.
	LastError     string
	FailureReason string

	// Generation increments with every published snapshot, so pollers
	// can cheaply detect change.
	Generation uint64
}

// FilesLabel renders "3 / 15" style file counts.
func (s Snapshot) FilesLabel() string {
	return format.CountPair(s.FilesDone, s.FilesTotal)
}

// SizeLabel renders "1.5 MB / 4.2 MB" style byte counts.
func (s Snapshot) SizeLabel() string {
	return format.SizePair(s.BytesDone, s.BytesTotal)
}

// RateLabel renders the current throughput, "4.2 MB/s".
func (s Snapshot) RateLabel() string {
	return format.Rate(s.Rate)
}

// ETALabel renders the remaining time, or the unknown placeholder.
func (s Snapshot) ETALabel() string {
	return format.ETA(s.ETA, s.ETAKnown)
}

// ElapsedLabel renders the running time as HH:MM:SS.
func (s Snapshot) ElapsedLabel() string {
	return format.Clock(s.Elapsed)
}

// SnapshotEvent wraps a snapshot for the event bus.
type SnapshotEvent struct {
	events.BaseEvent
	Snapshot Snapshot
}

// NewSnapshotEvent builds a bus event around a snapshot.
func NewSnapshotEvent(s Snapshot) *SnapshotEvent {
	return &SnapshotEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventSnapshot,
			Time:      time.Now(),
		},
		Snapshot: s,
	}
}
