package constants

import (
	"time"
)

// Copy loop
const (
	// CopyBufferSize - size of the read/write buffer for file copies (256 KB)
	//
	// Trade-offs:
	// - Smaller buffers = lower cancellation latency but more syscalls
	// - Larger buffers = better throughput but coarser cancel/pause checks
	//
	// The cancellation token and pause gate are checked once per buffer, so
	// this value bounds how long a cancel can go unobserved during a copy.
	CopyBufferSize = 256 * 1024

	// MinCopyBufferSize - minimum configurable copy buffer (4 KB)
	MinCopyBufferSize = 4 * 1024

	// MaxCopyBufferSize - maximum configurable copy buffer (8 MB)
	// Caps per-job memory and keeps cancellation latency bounded.
	MaxCopyBufferSize = 8 * 1024 * 1024
)

// Progress sampling
const (
	// SampleMinInterval - minimum time between intra-file progress samples (100ms)
	// Caps the sample stream at ~10/s per file regardless of copy speed.
	// File-boundary samples are always emitted, so small files still report.
	SampleMinInterval = 100 * time.Millisecond

	// SnapshotTickInterval - interval for periodic snapshot republish (1 second)
	// Keeps elapsed time, rate decay, and ETA-unknown transitions visible
	// even when no I/O samples arrive (stalled media, paused job).
	SnapshotTickInterval = 1 * time.Second
)

// Rate estimation
const (
	// RateWindow - width of the sliding sample window (5 seconds)
	// Time-based rather than sample-count-based so estimate quality does
	// not depend on the sample rate.
	RateWindow = 5 * time.Second

	// RateSmoothingAlpha - EMA weight for the newest instantaneous rate (0.25)
	// Higher = more responsive, lower = smoother displayed ETA.
	RateSmoothingAlpha = 0.25

	// RateIdleTimeout - no samples for this long reports the rate as unknown (3 seconds)
	// Prevents a frozen ETA from being displayed for a stalled transfer.
	RateIdleTimeout = 3 * time.Second
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent - additional space to require beyond file size (5%)
	// Accounts for filesystem metadata and allocation granularity.
	DiskSpaceBufferPercent = 0.05
)

// Event system
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// 1000 events is generous for typical snapshot/notification throughput.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000

	// EnumerateQueueSize - buffer between the enumerator and the copy loop (128)
	// Lets enumeration run ahead of the transfer on large trees.
	EnumerateQueueSize = 128
)

// Notifications
const (
	// MaxVisibleNotifications - maximum notifications shown at once (3)
	// Additional notifications wait in a FIFO backlog.
	MaxVisibleNotifications = 3

	// NotificationDuration - default time before a notification auto-expires (3.5 seconds)
	NotificationDuration = 3500 * time.Millisecond

	// NotificationErrorDuration - display time for error notifications (6 seconds)
	// Errors stay up longer so they are not missed during a busy transfer.
	NotificationErrorDuration = 6 * time.Second
)

// Job queue
const (
	// DefaultMaxConcurrentJobs - jobs running at once by default (1)
	// The engine queues additional jobs; one transfer at a time keeps
	// spinning-disk seeks and rate estimates sane.
	DefaultMaxConcurrentJobs = 1

	// MaxMaxConcurrentJobs - maximum concurrent jobs allowed (4)
	MaxMaxConcurrentJobs = 4

	// JobQueueSize - buffer for the engine's pending-job queue (64)
	// Submitting a job when the queue is full fails rather than blocks.
	JobQueueSize = 64
)
