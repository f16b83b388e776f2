// Package transfer executes copy and move jobs: it walks the enumerated
// task list, copies file contents with bounded cancellation latency, and
// reports raw progress to the aggregation layer.
package transfer

import (
	"io/fs"
	"time"
)

// TaskStatus represents the current state of a single file task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"     // Enumerated, not yet started
	TaskInProgress TaskStatus = "in_progress" // Bytes are being copied
	TaskDone       TaskStatus = "done"        // Copied (and verified, if enabled)
	TaskSkipped    TaskStatus = "skipped"     // Source vanished between enumeration and copy
	TaskErrored    TaskStatus = "errored"     // Failed with a per-file error; job continued
)

// IsTerminal returns true if the task finished one way or another.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskDone, TaskSkipped, TaskErrored:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a transfer job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"   // Created, waiting for a worker slot
	JobRunning   JobStatus = "running"   // Enumerating and copying
	JobPaused    JobStatus = "paused"    // Suspended by the user; resumable
	JobCompleted JobStatus = "completed" // All tasks finished (some may have errored)
	JobCancelled JobStatus = "cancelled" // Stopped by the user; not a failure
	JobFailed    JobStatus = "failed"    // Enumeration or job-fatal error
)

// IsTerminal returns true if the status is final.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobCancelled, JobFailed:
		return true
	}
	return false
}

// ValidTransition reports whether a job may move from one status to
// another. Terminal states accept no transitions; Paused can only return
// to Running or end.
func ValidTransition(from, to JobStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case JobPending:
		return to == JobRunning || to == JobCancelled || to == JobFailed
	case JobRunning:
		return to == JobPaused || to == JobCompleted || to == JobCancelled || to == JobFailed
	case JobPaused:
		return to == JobRunning || to == JobCancelled || to == JobFailed
	}
	return false
}

// FileTask is one file within a job. The worker is the only writer of
// BytesCopied and Status while the job runs; everyone else reads clones.
type FileTask struct {
	// RelPath is the path relative to both roots, in native separators.
	RelPath string

	// AbsSrc and AbsDst are the resolved endpoint paths.
	AbsSrc string
	AbsDst string

	// Size is the byte size resolved at enumeration time. Reconciled to
	// the actual copied size on completion if the file changed under us.
	Size int64

	// BytesCopied never exceeds Size and never decreases while the task
	// is in flight. It resets to zero only when a partial destination
	// file is removed (cancellation or a failed copy).
	BytesCopied int64

	Status TaskStatus

	// Reason holds the error text for Errored and Skipped tasks.
	Reason string

	// Mode and ModTime carry source permissions and timestamps to the
	// destination.
	Mode    fs.FileMode
	ModTime time.Time
}

// Clone returns a copy of the task safe to hand outside the worker.
func (t *FileTask) Clone() FileTask {
	return *t
}
