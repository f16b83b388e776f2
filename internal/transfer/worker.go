package transfer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fileferry/fileferry/internal/clock"
	"github.com/fileferry/fileferry/internal/constants"
	"github.com/fileferry/fileferry/internal/diskspace"
	"github.com/fileferry/fileferry/internal/localfs"
)

// SpaceChecker decides whether the destination volume can hold the next
// file. The default checks real free space via the diskspace package;
// tests inject their own.
type SpaceChecker func(targetPath string, requiredBytes int64, safetyMargin float64) error

// ProgressSink receives the worker's callbacks while a job runs. Task
// arguments are clones, safe to retain. Discovery callbacks arrive on
// the enumeration goroutine and can interleave with copy callbacks, so
// implementations must be safe for concurrent use.
type ProgressSink interface {
	// EnumerationStarted fires once, before the walk of the source
	// root begins.
	EnumerationStarted(root string)

	// TaskDiscovered fires for each enumerated file, in walk order,
	// possibly while earlier files are already copying.
	TaskDiscovered(t FileTask)

	// EnumerationFinished fires once when the walk has completed
	// cleanly. File and byte totals are final from this point on. It
	// does not fire when the walk fails or is cancelled.
	EnumerationFinished()

	// TaskStarted fires when a file's copy begins.
	TaskStarted(t FileTask)

	// TaskProgress fires during a file's copy, coalesced to the
	// worker's sample interval.
	TaskProgress(t FileTask)

	// TaskCompleted fires when a file has been fully copied (and
	// verified, for verifying jobs).
	TaskCompleted(t FileTask)

	// TaskSkipped fires when a file is passed over, either because the
	// source vanished or because the copy failed; the task's Status
	// distinguishes the two. The job continues with the next file.
	TaskSkipped(t FileTask, err error)
}

// WorkerConfig tunes a worker. The zero value is normalized to the
// engine defaults by NewWorker.
type WorkerConfig struct {
	// BufferSize is the copy buffer in bytes, clamped to the engine's
	// supported range.
	BufferSize int

	// SampleInterval is the minimum spacing between TaskProgress
	// callbacks for one file.
	SampleInterval time.Duration

	// SpaceMargin is the safety fraction handed to the space checker
	// on top of each file's size.
	SpaceMargin float64

	// PreserveModTime carries source modification times onto
	// destination files.
	PreserveModTime bool

	// Fsync flushes each destination file to stable storage before it
	// counts as completed.
	Fsync bool
}

// DefaultWorkerConfig returns the engine's standard worker tuning.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BufferSize:      constants.CopyBufferSize,
		SampleInterval:  constants.SampleMinInterval,
		SpaceMargin:     constants.DiskSpaceBufferPercent,
		PreserveModTime: true,
	}
}

// Worker executes one job at a time: it enumerates the source while
// copying already discovered files, reports progress through its sink,
// and stops at the pause gate between buffer writes. A worker is not
// safe for concurrent Run calls.
type Worker struct {
	cfg   WorkerConfig
	sink  ProgressSink
	gate  *Gate
	check SpaceChecker
	clk   clock.Clock
	buf   []byte
}

// NewWorker builds a worker around the given sink. A nil gate gets a
// fresh open gate, a nil checker falls back to real disk-space checks,
// and a nil clock falls back to the system clock.
func NewWorker(cfg WorkerConfig, sink ProgressSink, gate *Gate, check SpaceChecker, clk clock.Clock) *Worker {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = constants.CopyBufferSize
	}
	if cfg.BufferSize < constants.MinCopyBufferSize {
		cfg.BufferSize = constants.MinCopyBufferSize
	}
	if cfg.BufferSize > constants.MaxCopyBufferSize {
		cfg.BufferSize = constants.MaxCopyBufferSize
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = constants.SampleMinInterval
	}
	if gate == nil {
		gate = NewGate()
	}
	if check == nil {
		check = diskspace.CheckAvailableSpace
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Worker{
		cfg:   cfg,
		sink:  sink,
		gate:  gate,
		check: check,
		clk:   clk,
		buf:   make([]byte, cfg.BufferSize),
	}
}

// Gate returns the worker's pause gate for the job controller.
func (w *Worker) Gate() *Gate { return w.gate }

// Run executes the job to completion. Enumeration streams on its own
// goroutine so copying starts as soon as the first file is known.
//
// The return value classifies the outcome for the caller: nil when
// every file was copied or skipped, the context's error when the job
// was cancelled, and an EnumerationError or JobFatalError when the job
// cannot continue. Per-file failures never surface here; they are
// recorded on their tasks and reported through the sink.
func (w *Worker) Run(ctx context.Context, job *Job) error {
	enum := localfs.NewEnumerator(job.Spec.Source, localfs.Options{
		FollowSymlinks: job.Spec.Options.FollowSymlinks,
		ExcludeHidden:  job.Spec.Options.ExcludeHidden,
	})

	// enumCtx unblocks the walk and the pump when Run exits early; the
	// pump must be drained before returning so no callback outlives Run.
	enumCtx, cancelEnum := context.WithCancel(ctx)
	var pump sync.WaitGroup
	defer pump.Wait()
	defer cancelEnum()

	w.sink.EnumerationStarted(job.Spec.Source)
	entries, errFn := enum.Enumerate(enumCtx)

	tasks := make(chan *FileTask, constants.EnumerateQueueSize)
	var walkFailed atomic.Bool
	pump.Add(1)
	go func() {
		defer pump.Done()
		defer close(tasks)
		for entry := range entries {
			t := newTaskFromEntry(entry, job.Spec.Dest)
			job.addTask(t)
			w.sink.TaskDiscovered(t.Clone())
			select {
			case tasks <- t:
			case <-enumCtx.Done():
				return
			}
		}
		// Totals become final only when the walk ended cleanly. On a
		// failed walk the flag stops the copy loop from working through
		// the buffered backlog of a job that is already lost.
		err := errFn()
		switch {
		case err == nil:
			w.sink.EnumerationFinished()
		case !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded):
			walkFailed.Store(true)
		}
	}()

	for t := range tasks {
		if walkFailed.Load() {
			break
		}
		t.Status = TaskInProgress
		w.sink.TaskStarted(t.Clone())

		err := w.copyFile(ctx, job, t)
		switch {
		case err == nil:
			t.Status = TaskDone
			w.sink.TaskCompleted(t.Clone())

		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// The in-flight task rolls back to pending; its partial
			// destination has already been removed.
			t.Status = TaskPending
			return err

		case IsJobFatal(err):
			t.Status = TaskPending
			return err

		case isSkip(err):
			t.Status = TaskSkipped
			t.Reason = err.Error()
			w.sink.TaskSkipped(t.Clone(), err)

		default:
			t.Status = TaskErrored
			t.Reason = err.Error()
			w.sink.TaskSkipped(t.Clone(), err)
		}
	}

	// The task channel is closed, so the walk is over and errFn will
	// not block for long. A failed walk fails the job even when every
	// file discovered before the failure copied cleanly.
	return errFn()
}
