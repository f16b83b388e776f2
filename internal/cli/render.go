package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/fileferry/fileferry/internal/core"
	"github.com/fileferry/fileferry/internal/events"
	"github.com/fileferry/fileferry/internal/progress"
	"github.com/fileferry/fileferry/internal/transfer"
	"github.com/fileferry/fileferry/internal/util/format"
	ustrings "github.com/fileferry/fileferry/internal/util/strings"
)

// fileBar tracks the progress bar for the file currently being copied.
// The worker copies one file at a time, so at most one is live.
type fileBar struct {
	rel  string
	size int64
	bar  *mpb.Bar
}

// renderer draws transfer progress on stderr: an mpb bar per file in
// flight plus an overall bar once the scan has finished, or plain text
// lines when stderr is not a terminal. All state is driven by the
// engine's event bus, the same feed any other frontend would consume.
type renderer struct {
	engine     *core.Engine
	isTerminal bool

	mpbRoot *mpb.Progress

	snapCh <-chan events.Event
	fileCh <-chan events.Event

	overall *mpb.Bar
	current *fileBar
	started int

	mu   sync.Mutex
	snap progress.Snapshot // latest snapshot, read by mpb decorators
}

// newRenderer creates a renderer and subscribes it to the engine's
// event bus. Create it before submitting the job it will render.
func newRenderer(engine *core.Engine) *renderer {
	r := &renderer{
		engine:     engine,
		isTerminal: term.IsTerminal(int(os.Stderr.Fd())),
		snapCh:     engine.Events().Subscribe(events.EventSnapshot),
		fileCh:     engine.Events().Subscribe(events.EventFile),
	}
	if r.isTerminal {
		enableANSIOnWindows(os.Stderr)
		r.mpbRoot = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	}
	return r
}

// Run renders until the job reaches a terminal state, then prints the
// final summary and returns the job's terminal error.
func (r *renderer) Run(jobID string) error {
	done := make(chan error, 1)
	go func() { done <- r.engine.Wait(context.Background(), jobID) }()

	var waitErr error
loop:
	for {
		select {
		case waitErr = <-done:
			break loop
		case ev := <-r.snapCh:
			if se, ok := ev.(*progress.SnapshotEvent); ok && se.Snapshot.JobID == jobID {
				r.onSnapshot(se.Snapshot)
			}
		case ev := <-r.fileCh:
			if fe, ok := ev.(*events.FileEvent); ok && fe.JobID == jobID {
				r.onFile(fe)
			}
		}
	}

	if snap, err := r.engine.Snapshot(jobID); err == nil {
		r.finish(snap)
	}
	return waitErr
}

func (r *renderer) latest() progress.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *renderer) onSnapshot(snap progress.Snapshot) {
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	if !r.isTerminal {
		return
	}

	// The overall bar appears once totals are final; while scanning,
	// the per-file bars and their decorators carry the live counts.
	if r.overall == nil && snap.EnumerationDone && snap.BytesTotal > 0 {
		r.overall = r.newOverallBar(snap.BytesTotal)
	}
	if r.overall != nil {
		r.overall.SetCurrent(snap.BytesDone)
	}
	if r.current != nil && snap.CurrentFile == r.current.rel {
		r.current.bar.SetCurrent(snap.CurrentFileBytes)
	}
}

func (r *renderer) newOverallBar(total int64) *mpb.Bar {
	return r.mpbRoot.New(total,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				return ustrings.Truncate(r.latest().StatusText, 40)
			}, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				s := r.latest()
				return fmt.Sprintf("%s  %3d%%  %s  ETA %s",
					s.SizeLabel(), s.Percent, s.RateLabel(), s.ETALabel())
			}, decor.WCSyncSpace),
		),
	)
}

func (r *renderer) onFile(ev *events.FileEvent) {
	switch ev.Stage {
	case events.FileStarted:
		r.started++
		if r.isTerminal {
			r.current = &fileBar{rel: ev.RelPath, size: ev.Size, bar: r.newFileBar(ev)}
		} else {
			fmt.Printf("Copying [%d/%s]: %s (%s)\n",
				r.started, r.totalLabel(), ev.RelPath, format.Bytes(ev.Size))
		}

	case events.FileCompleted:
		msg := fmt.Sprintf("✓ %s (%s)\n", ev.RelPath, format.Bytes(ev.Size))
		if r.isTerminal {
			if r.current != nil && r.current.rel == ev.RelPath {
				r.current.bar.SetCurrent(r.current.size)
				r.current.bar.SetTotal(r.current.size, true)
				r.current = nil
			}
			_, _ = r.mpbRoot.Write([]byte(msg))
		} else {
			fmt.Print(msg)
		}

	case events.FileSkipped:
		msg := fmt.Sprintf("✗ %s: %s\n", ev.RelPath, ev.Error)
		if r.isTerminal {
			if r.current != nil && r.current.rel == ev.RelPath {
				r.current.bar.Abort(true)
				r.current = nil
			}
			_, _ = r.mpbRoot.Write([]byte(msg))
		} else {
			fmt.Print(msg)
		}
	}
}

func (r *renderer) newFileBar(ev *events.FileEvent) *mpb.Bar {
	index := r.started
	rel := ev.RelPath
	return r.mpbRoot.New(ev.Size,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				return fmt.Sprintf("[%d/%s] %s", index, r.totalLabel(), ustrings.Truncate(rel, 40))
			}, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
}

// totalLabel is the file count denominator, "?" while the scan is
// still finding files.
func (r *renderer) totalLabel() string {
	s := r.latest()
	if !s.EnumerationDone {
		return "?"
	}
	return fmt.Sprintf("%d", s.FilesTotal)
}

// finish settles the bars and prints the one-line outcome.
func (r *renderer) finish(snap progress.Snapshot) {
	if r.isTerminal {
		if r.current != nil {
			r.current.bar.Abort(true)
			r.current = nil
		}
		if r.overall != nil {
			if snap.Status == transfer.JobCompleted {
				r.overall.SetCurrent(snap.BytesTotal)
				r.overall.SetTotal(snap.BytesTotal, true)
			} else {
				r.overall.Abort(true)
			}
		}
		r.mpbRoot.Wait()
	}

	switch snap.Status {
	case transfer.JobCompleted, transfer.JobCancelled:
		fmt.Printf("%s (%s in %s)\n",
			snap.StatusText, format.Bytes(snap.BytesDone), snap.ElapsedLabel())
	}
	// A failed job's error is printed by the caller.
}
