// Package core orchestrates transfer jobs. A bounded queue feeds a
// fixed set of dispatchers; each running job gets a copy worker, a
// progress aggregator, and a pause gate. Job state changes and skipped
// files surface as in-app notifications, mirrored to the desktop while
// enabled.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fileferry/fileferry/internal/clock"
	"github.com/fileferry/fileferry/internal/config"
	"github.com/fileferry/fileferry/internal/constants"
	"github.com/fileferry/fileferry/internal/events"
	"github.com/fileferry/fileferry/internal/logging"
	"github.com/fileferry/fileferry/internal/notify"
	"github.com/fileferry/fileferry/internal/progress"
	"github.com/fileferry/fileferry/internal/rate"
	"github.com/fileferry/fileferry/internal/transfer"
	ustrings "github.com/fileferry/fileferry/internal/util/strings"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueFull   = errors.New("job queue is full")
	ErrStopped     = errors.New("engine is stopped")
)

// jobState ties together everything the engine tracks for one job.
type jobState struct {
	job    *transfer.Job
	agg    *progress.Aggregator
	gate   *transfer.Gate
	ctx    context.Context
	cancel context.CancelFunc

	done chan struct{}
	err  error // written once, before done closes
}

// Engine is the orchestrator behind the CLI commands. Jobs are
// submitted with Submit and run in queue order on a fixed number of
// dispatchers. Progress is read through Snapshot or the event bus;
// Pause, Resume and Cancel steer a job while it runs.
type Engine struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *events.EventBus
	clk     clock.Clock
	notes   *notify.Queue
	desktop *notify.DesktopNotifier

	mu    sync.RWMutex
	jobs  map[string]*jobState
	order []string
	check transfer.SpaceChecker

	queue  chan *jobState
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
}

// New creates an engine and starts its dispatchers. A nil config uses
// the defaults; a nil logger uses the default CLI logger.
func New(cfg *config.Config, logger *logging.Logger) *Engine {
	if cfg == nil {
		cfg = config.New()
	}
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	clk := clock.System()

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		clk:    clk,
		notes:  notify.NewQueue(cfg.Notifications.MaxVisible, clk, bus),
		desktop: notify.NewDesktopNotifier(&notify.DesktopConfig{
			Enabled:        cfg.Notifications.Enabled,
			ShowCompletion: cfg.Notifications.ShowCompletion,
			ShowFailure:    cfg.Notifications.ShowFailure,
			ShowFileErrors: cfg.Notifications.ShowFileErrors,
		}, logger),
		jobs:   make(map[string]*jobState),
		queue:  make(chan *jobState, constants.JobQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	dispatchers := cfg.Transfer.MaxConcurrentJobs
	if dispatchers < 1 {
		dispatchers = 1
	}
	for i := 0; i < dispatchers; i++ {
		e.wg.Add(1)
		go e.dispatch()
	}
	e.wg.Add(1)
	go e.notificationBridge()

	return e
}

// Events returns the event bus for subscriptions.
func (e *Engine) Events() *events.EventBus {
	return e.bus
}

// Notifications returns the in-app notification queue.
func (e *Engine) Notifications() *notify.Queue {
	return e.notes
}

// SetSpaceChecker replaces the pre-flight free-space check applied to
// jobs submitted afterwards.
func (e *Engine) SetSpaceChecker(check transfer.SpaceChecker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.check = check
}

// Submit queues a transfer job and returns its ID. It fails when the
// queue is full rather than blocking the caller.
func (e *Engine) Submit(spec transfer.JobSpec) (string, error) {
	if e.ctx.Err() != nil {
		return "", ErrStopped
	}

	job := transfer.NewJob(spec)
	jobCtx, cancel := context.WithCancel(e.ctx)
	js := &jobState{
		job: job,
		agg: progress.NewAggregator(job, e.bus, e.clk, rate.Config{
			Window:      e.cfg.RateWindow(),
			IdleTimeout: e.cfg.RateIdleTimeout(),
			Alpha:       e.cfg.Rate.SmoothingAlpha,
		}),
		gate:   transfer.NewGate(),
		ctx:    jobCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	e.jobs[job.ID] = js
	e.order = append(e.order, job.ID)
	e.mu.Unlock()

	select {
	case e.queue <- js:
	default:
		e.mu.Lock()
		delete(e.jobs, job.ID)
		for i, id := range e.order {
			if id == job.ID {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
		e.mu.Unlock()
		cancel()
		return "", ErrQueueFull
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Str("source", spec.Source).
		Str("dest", spec.Dest).
		Msg("job queued")
	return job.ID, nil
}

// Pause stops a running job at its next pause point. The worker blocks
// between chunk writes; elapsed time keeps accruing.
func (e *Engine) Pause(jobID string) error {
	js, err := e.get(jobID)
	if err != nil {
		return err
	}
	if err := js.agg.Pause(); err != nil {
		return err
	}
	js.gate.Pause()
	return nil
}

// Resume releases a paused job.
func (e *Engine) Resume(jobID string) error {
	js, err := e.get(jobID)
	if err != nil {
		return err
	}
	if err := js.agg.Resume(); err != nil {
		return err
	}
	js.gate.Resume()
	return nil
}

// Cancel requests cooperative cancellation. The worker notices within
// one chunk, removes the partial destination file, and the job lands in
// the cancelled state; already-copied files stay on disk. Cancelling a
// queued job prevents it from starting.
func (e *Engine) Cancel(jobID string) error {
	js, err := e.get(jobID)
	if err != nil {
		return err
	}
	js.agg.CancelRequested()
	js.cancel()
	return nil
}

// Snapshot returns the job's latest progress snapshot.
func (e *Engine) Snapshot(jobID string) (progress.Snapshot, error) {
	js, err := e.get(jobID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return js.agg.Current(), nil
}

// Wait blocks until the job reaches a terminal state or ctx is done.
// It returns the job's terminal error: nil for completed, the context
// error for cancelled, the fatal error for failed.
func (e *Engine) Wait(ctx context.Context, jobID string) error {
	js, err := e.get(jobID)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-js.done:
		return js.err
	}
}

// List returns the latest snapshot of every submitted job in
// submission order.
// v1.2.0: Added for the multi-job queue.
func (e *Engine) List() []progress.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]progress.Snapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.jobs[id].agg.Current())
	}
	return out
}

// Dismiss removes an in-app notification by ID.
func (e *Engine) Dismiss(notificationID string) bool {
	return e.notes.Dismiss(notificationID)
}

// Stop cancels all jobs, waits for the dispatchers to drain, and shuts
// down the notification queue and event bus. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
		e.notes.Stop()
		e.bus.Close()
	})
}

func (e *Engine) get(jobID string) (*jobState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	js, ok := e.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return js, nil
}

func (e *Engine) dispatch() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case js := <-e.queue:
			e.runJob(js)
		}
	}
}

// runJob drives one job from pending to a terminal state on the
// calling dispatcher goroutine.
func (e *Engine) runJob(js *jobState) {
	defer js.cancel()
	job := js.job

	if js.ctx.Err() != nil {
		// Cancelled while still queued.
		js.err = js.ctx.Err()
		js.agg.JobCancelled()
		close(js.done)
		return
	}

	if err := js.agg.JobStarted(); err != nil {
		js.err = err
		close(js.done)
		return
	}

	// Republish on a steady interval so elapsed time and rate decay
	// stay live while the transfer stalls or pauses.
	stopTick := make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(constants.SnapshotTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopTick:
				return
			case <-ticker.C:
				js.agg.Tick()
			}
		}
	}()

	e.mu.RLock()
	check := e.check
	e.mu.RUnlock()

	worker := transfer.NewWorker(transfer.WorkerConfig{
		BufferSize:      e.cfg.BufferSize(),
		SampleInterval:  e.cfg.SampleInterval(),
		SpaceMargin:     e.cfg.SpaceMargin(),
		PreserveModTime: e.cfg.Transfer.PreserveModTime,
		Fsync:           e.cfg.Transfer.Fsync,
	}, js.agg, js.gate, check, e.clk)

	start := time.Now()
	err := worker.Run(js.ctx, job)
	close(stopTick)

	switch {
	case err == nil:
		js.agg.JobCompleted()
		e.logger.Info().
			Str("job_id", job.ID).
			Dur("elapsed", time.Since(start)).
			Msg("job completed")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		js.agg.JobCancelled()
		e.logger.Info().Str("job_id", job.ID).Msg("job cancelled")
	default:
		js.agg.JobFailed(err)
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
	}

	js.err = err
	close(js.done)
}

// notificationBridge turns bus events into in-app notifications and
// desktop mirrors. It reads the same subscription channels any UI
// would, so notification timing stays decoupled from the workers.
func (e *Engine) notificationBridge() {
	defer e.wg.Done()
	stateCh := e.bus.Subscribe(events.EventState)
	fileCh := e.bus.Subscribe(events.EventFile)

	for {
		select {
		case <-e.ctx.Done():
			return
		case ev := <-stateCh:
			if sc, ok := ev.(*events.StateChangeEvent); ok {
				e.announceState(sc)
			}
		case ev := <-fileCh:
			if fe, ok := ev.(*events.FileEvent); ok && fe.Stage == events.FileSkipped {
				e.announceSkip(fe)
			}
		}
	}
}

func (e *Engine) announceState(ev *events.StateChangeEvent) {
	if !ev.To.IsTerminal() {
		return
	}
	snap, err := e.Snapshot(ev.JobID)
	if err != nil {
		return
	}
	switch ev.To {
	case transfer.JobCompleted:
		e.notes.Post(snap.StatusText, notify.SeveritySuccess)
		e.desktop.TransferComplete(snap.Dest, snap.StatusText)
	case transfer.JobFailed:
		e.notes.Post(snap.StatusText, notify.SeverityError)
		e.desktop.TransferFailed(ev.Reason)
	case transfer.JobCancelled:
		e.notes.Post(snap.StatusText, notify.SeverityInfo)
		e.desktop.TransferCancelled()
	}
}

func (e *Engine) announceSkip(ev *events.FileEvent) {
	msg := fmt.Sprintf("Skipped %s", ev.RelPath)
	if ev.Error != "" {
		msg = fmt.Sprintf("Skipped %s: %s", ev.RelPath, ustrings.Truncate(ev.Error, 80))
	}
	e.notes.Post(msg, notify.SeverityWarning)
	e.desktop.FileSkipped(ev.RelPath, ev.Error)
}
