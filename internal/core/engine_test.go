package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fileferry/fileferry/internal/config"
	"github.com/fileferry/fileferry/internal/diskspace"
	"github.com/fileferry/fileferry/internal/events"
	"github.com/fileferry/fileferry/internal/notify"
	"github.com/fileferry/fileferry/internal/transfer"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.New()
	cfg.Transfer.BufferSizeKB = 4
	cfg.Notifications.Enabled = false // no desktop notifications from tests
	e := New(cfg, nil)
	t.Cleanup(e.Stop)
	return e
}

func writeSourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	src := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

func checkDestFile(t *testing.T, dest, rel, want string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
	if err != nil {
		t.Errorf("reading %s: %v", rel, err)
		return
	}
	if string(data) != want {
		t.Errorf("%s content = %q, want %q", rel, data, want)
	}
}

func TestEngineCopyJob(t *testing.T) {
	e := testEngine(t)
	files := map[string]string{
		"a.txt":        "alpha",
		"sub/b.txt":    "bravo",
		"sub/deep/c.x": "charlie",
	}
	src := writeSourceTree(t, files)
	dest := t.TempDir()

	id, err := e.Submit(transfer.JobSpec{Source: src, Dest: dest})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := e.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait returned %v, want nil", err)
	}

	for rel, content := range files {
		checkDestFile(t, dest, rel, content)
	}

	snap, err := e.Snapshot(id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != transfer.JobCompleted {
		t.Errorf("status = %s, want %s", snap.Status, transfer.JobCompleted)
	}
	if snap.FilesDone != 3 || snap.FilesTotal != 3 {
		t.Errorf("files = %d/%d, want 3/3", snap.FilesDone, snap.FilesTotal)
	}
	if snap.Percent != 100 {
		t.Errorf("percent = %d, want 100", snap.Percent)
	}
	if !snap.EnumerationDone {
		t.Error("EnumerationDone = false after completion")
	}
	if snap.StatusText != "3 of 3 files copied" {
		t.Errorf("status text = %q, want %q", snap.StatusText, "3 of 3 files copied")
	}
}

func TestEngineMoveJob(t *testing.T) {
	e := testEngine(t)
	src := writeSourceTree(t, map[string]string{
		"one.bin": "one",
		"two.bin": "two",
	})
	dest := t.TempDir()

	id, err := e.Submit(transfer.JobSpec{
		Source:  src,
		Dest:    dest,
		Options: transfer.JobOptions{RemoveSource: true},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := e.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait returned %v, want nil", err)
	}

	checkDestFile(t, dest, "one.bin", "one")
	checkDestFile(t, dest, "two.bin", "two")
	for _, rel := range []string{"one.bin", "two.bin"} {
		if _, err := os.Stat(filepath.Join(src, rel)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("source %s still exists after move", rel)
		}
	}
}

// blockingChecker blocks the worker inside the first pre-flight space
// check until released, giving tests a deterministic point where the
// job is running but has not copied anything yet.
type blockingChecker struct {
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
	relOnce   sync.Once
}

// newBlockingChecker wires a checker into the test engine. The release
// is registered as a cleanup so a failed assertion cannot leave the
// worker blocked under Stop.
func newBlockingChecker(t *testing.T, e *Engine) *blockingChecker {
	t.Helper()
	b := &blockingChecker{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e.SetSpaceChecker(b.check)
	t.Cleanup(b.releaseAll)
	return b
}

func (b *blockingChecker) check(string, int64, float64) error {
	b.startOnce.Do(func() { close(b.started) })
	<-b.release
	return nil
}

func (b *blockingChecker) releaseAll() {
	b.relOnce.Do(func() { close(b.release) })
}

func TestEngineCancel(t *testing.T) {
	e := testEngine(t)
	src := writeSourceTree(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "bravo",
	})
	dest := t.TempDir()

	blocker := newBlockingChecker(t, e)

	id, err := e.Submit(transfer.JobSpec{Source: src, Dest: dest})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	<-blocker.started
	if err := e.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	blocker.releaseAll()

	err = e.Wait(context.Background(), id)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait returned %v, want context.Canceled", err)
	}

	snap, _ := e.Snapshot(id)
	if snap.Status != transfer.JobCancelled {
		t.Errorf("status = %s, want %s", snap.Status, transfer.JobCancelled)
	}
	if snap.StatusText != "Transfer cancelled" {
		t.Errorf("status text = %q, want %q", snap.StatusText, "Transfer cancelled")
	}
	if snap.FilesDone != 0 {
		t.Errorf("files done = %d, want 0", snap.FilesDone)
	}

	// Nothing was copied, so the destination must hold no partial files.
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("destination has %d entries after cancel, want 0", len(entries))
	}
}

func TestEnginePauseResume(t *testing.T) {
	e := testEngine(t)
	src := writeSourceTree(t, map[string]string{"a.txt": "alpha"})
	dest := t.TempDir()

	blocker := newBlockingChecker(t, e)

	id, err := e.Submit(transfer.JobSpec{Source: src, Dest: dest})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	<-blocker.started
	if err := e.Pause(id); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if snap, _ := e.Snapshot(id); snap.Status != transfer.JobPaused {
		t.Errorf("status = %s, want %s", snap.Status, transfer.JobPaused)
	}
	if snap, _ := e.Snapshot(id); snap.StatusText != "Paused" {
		t.Errorf("status text = %q, want Paused", snap.StatusText)
	}

	if err := e.Resume(id); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	blocker.releaseAll()

	if err := e.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait returned %v, want nil", err)
	}
	checkDestFile(t, dest, "a.txt", "alpha")
}

func TestEngineSpaceFailure(t *testing.T) {
	e := testEngine(t)
	src := writeSourceTree(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "bravo",
		"c.txt": "charlie",
	})
	dest := t.TempDir()

	// Files copy in walk order, so b.txt is the second file.
	e.SetSpaceChecker(func(targetPath string, requiredBytes int64, margin float64) error {
		if filepath.Base(targetPath) == "b.txt" {
			return &diskspace.InsufficientSpaceError{
				Path:           targetPath,
				RequiredBytes:  requiredBytes,
				AvailableBytes: 0,
			}
		}
		return nil
	})

	id, err := e.Submit(transfer.JobSpec{Source: src, Dest: dest})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	err = e.Wait(context.Background(), id)
	if err == nil {
		t.Fatal("Wait returned nil, want a fatal error")
	}
	if !transfer.IsJobFatal(err) {
		t.Errorf("Wait error %v is not job-fatal", err)
	}

	snap, _ := e.Snapshot(id)
	if snap.Status != transfer.JobFailed {
		t.Errorf("status = %s, want %s", snap.Status, transfer.JobFailed)
	}
	if snap.FilesDone != 1 {
		t.Errorf("files done = %d, want 1", snap.FilesDone)
	}
	if snap.FailureReason == "" {
		t.Error("failure reason is empty")
	}

	// The file before the failure stays; the rest were never written.
	checkDestFile(t, dest, "a.txt", "alpha")
	for _, rel := range []string{"b.txt", "c.txt"} {
		if _, err := os.Stat(filepath.Join(dest, rel)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s exists in destination after fatal error", rel)
		}
	}
}

func TestEngineCancelQueuedJob(t *testing.T) {
	e := testEngine(t) // one dispatcher
	src1 := writeSourceTree(t, map[string]string{"a.txt": "alpha"})
	src2 := writeSourceTree(t, map[string]string{"b.txt": "bravo"})
	dest1, dest2 := t.TempDir(), t.TempDir()

	blocker := newBlockingChecker(t, e)

	id1, err := e.Submit(transfer.JobSpec{Source: src1, Dest: dest1})
	if err != nil {
		t.Fatal(err)
	}
	<-blocker.started

	// The dispatcher is busy with job 1, so job 2 waits in the queue.
	id2, err := e.Submit(transfer.JobSpec{Source: src2, Dest: dest2})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Cancel(id2); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	blocker.releaseAll()

	if err := e.Wait(context.Background(), id1); err != nil {
		t.Errorf("job 1 Wait returned %v, want nil", err)
	}
	err = e.Wait(context.Background(), id2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("job 2 Wait returned %v, want context.Canceled", err)
	}

	snap, _ := e.Snapshot(id2)
	if snap.Status != transfer.JobCancelled {
		t.Errorf("job 2 status = %s, want %s", snap.Status, transfer.JobCancelled)
	}
	if snap.FilesTotal != 0 {
		t.Errorf("job 2 enumerated %d files, want 0", snap.FilesTotal)
	}
	if entries, _ := os.ReadDir(dest2); len(entries) != 0 {
		t.Errorf("job 2 destination has %d entries, want 0", len(entries))
	}
}

func TestEngineJobNotFound(t *testing.T) {
	e := testEngine(t)

	if _, err := e.Snapshot("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Snapshot error = %v, want ErrJobNotFound", err)
	}
	if err := e.Pause("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Pause error = %v, want ErrJobNotFound", err)
	}
	if err := e.Cancel("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Cancel error = %v, want ErrJobNotFound", err)
	}
	if err := e.Wait(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Wait error = %v, want ErrJobNotFound", err)
	}
}

func TestEngineSubmitAfterStop(t *testing.T) {
	e := New(config.New(), nil)
	e.Stop()

	if _, err := e.Submit(transfer.JobSpec{Source: "/a", Dest: "/b"}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit error = %v, want ErrStopped", err)
	}
}

func TestEngineList(t *testing.T) {
	e := testEngine(t)

	var ids []string
	for i := 0; i < 3; i++ {
		src := writeSourceTree(t, map[string]string{"f.txt": fmt.Sprintf("content-%d", i)})
		id, err := e.Submit(transfer.JobSpec{Source: src, Dest: t.TempDir()})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := e.Wait(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}

	snaps := e.List()
	if len(snaps) != 3 {
		t.Fatalf("List returned %d snapshots, want 3", len(snaps))
	}
	for i, snap := range snaps {
		if snap.JobID != ids[i] {
			t.Errorf("snapshot %d is job %s, want %s (submission order)", i, snap.JobID, ids[i])
		}
		if snap.Status != transfer.JobCompleted {
			t.Errorf("snapshot %d status = %s, want completed", i, snap.Status)
		}
	}
}

func TestEngineCompletionNotification(t *testing.T) {
	e := testEngine(t)
	src := writeSourceTree(t, map[string]string{"a.txt": "alpha"})

	noteCh := e.Events().Subscribe(events.EventNotification)

	id, err := e.Submit(transfer.JobSpec{Source: src, Dest: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Wait(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	// The bridge posts asynchronously after the terminal state event.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-noteCh:
			ne, ok := ev.(*notify.NotificationEvent)
			if !ok || ne.Action != notify.ActionPosted {
				continue
			}
			if ne.Notification.Severity != notify.SeveritySuccess {
				t.Errorf("severity = %s, want %s", ne.Notification.Severity, notify.SeveritySuccess)
			}
			if ne.Notification.Message != "1 of 1 files copied" {
				t.Errorf("message = %q, want %q", ne.Notification.Message, "1 of 1 files copied")
			}
			return
		case <-deadline:
			t.Fatal("no posted notification after job completion")
		}
	}
}
