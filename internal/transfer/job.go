package transfer

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fileferry/fileferry/internal/localfs"
)

// JobOptions are the per-job knobs chosen by the caller.
type JobOptions struct {
	// FollowSymlinks descends into symlinked directories during
	// enumeration (cycle-checked).
	FollowSymlinks bool

	// ExcludeHidden drops dot-files from enumeration.
	ExcludeHidden bool

	// Verify compares a CRC-32 of the written destination against the
	// source after each file. A mismatch is a per-file error.
	Verify bool

	// RemoveSource deletes each source file after it has been copied
	// (and verified, when Verify is set). This is move semantics.
	RemoveSource bool
}

// JobSpec describes one enumerate-then-copy operation.
type JobSpec struct {
	// Source is the root to copy from: a directory or a single file.
	Source string

	// Dest is the directory the tree is recreated under.
	Dest string

	Options JobOptions
}

// Job is one transfer operation owned by the engine for its lifetime.
// Task objects are appended by the worker during enumeration; external
// readers get clones via Tasks.
type Job struct {
	ID        string
	Spec      JobSpec
	CreatedAt time.Time

	mu    sync.Mutex
	tasks []*FileTask
}

// NewJob creates a job with a fresh ID.
func NewJob(spec JobSpec) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Spec:      spec,
		CreatedAt: time.Now(),
	}
}

// addTask registers a newly enumerated task. Called by the worker.
func (j *Job) addTask(t *FileTask) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tasks = append(j.tasks, t)
}

// Tasks returns clones of all tasks enumerated so far, in order. Task
// fields are owned by the worker while the job runs; the live view of
// progress is the aggregator snapshot, and Tasks is meant for
// inspection once the job has reached a terminal state.
func (j *Job) Tasks() []FileTask {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]FileTask, len(j.tasks))
	for i, t := range j.tasks {
		out[i] = t.Clone()
	}
	return out
}

// TaskCount returns the number of tasks enumerated so far.
func (j *Job) TaskCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.tasks)
}

// newTaskFromEntry maps an enumerated file onto a pending task with its
// destination path resolved under the job's dest root.
func newTaskFromEntry(entry localfs.FileEntry, destRoot string) *FileTask {
	return &FileTask{
		RelPath: entry.RelPath,
		AbsSrc:  entry.AbsPath,
		AbsDst:  filepath.Join(destRoot, entry.RelPath),
		Size:    entry.Size,
		Status:  TaskPending,
		Mode:    entry.Mode,
		ModTime: entry.ModTime,
	}
}
