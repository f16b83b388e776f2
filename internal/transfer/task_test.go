package transfer

import (
	"testing"
	"time"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to running", JobPending, JobRunning, true},
		{"pending to cancelled", JobPending, JobCancelled, true},
		{"pending to failed", JobPending, JobFailed, true},
		{"pending to paused", JobPending, JobPaused, false},
		{"pending to completed", JobPending, JobCompleted, false},
		{"running to paused", JobRunning, JobPaused, true},
		{"running to completed", JobRunning, JobCompleted, true},
		{"running to cancelled", JobRunning, JobCancelled, true},
		{"running to failed", JobRunning, JobFailed, true},
		{"running to pending", JobRunning, JobPending, false},
		{"paused to running", JobPaused, JobRunning, true},
		{"paused to cancelled", JobPaused, JobCancelled, true},
		{"paused to failed", JobPaused, JobFailed, true},
		{"paused to completed", JobPaused, JobCompleted, false},
		{"completed is terminal", JobCompleted, JobRunning, false},
		{"cancelled is terminal", JobCancelled, JobRunning, false},
		{"failed is terminal", JobFailed, JobPending, false},
		{"self transition rejected", JobRunning, JobRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := []JobStatus{JobCompleted, JobCancelled, JobFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []JobStatus{JobPending, JobRunning, JobPaused}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	terminal := []TaskStatus{TaskDone, TaskSkipped, TaskErrored}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	live := []TaskStatus{TaskPending, TaskInProgress}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestFileTaskClone(t *testing.T) {
	orig := &FileTask{
		RelPath:     "sub/file.txt",
		AbsSrc:      "/src/sub/file.txt",
		AbsDst:      "/dst/sub/file.txt",
		Size:        100,
		BytesCopied: 40,
		Status:      TaskInProgress,
		ModTime:     time.Now(),
	}

	clone := orig.Clone()
	orig.BytesCopied = 80
	orig.Status = TaskDone

	if clone.BytesCopied != 40 {
		t.Errorf("clone BytesCopied = %d, want 40", clone.BytesCopied)
	}
	if clone.Status != TaskInProgress {
		t.Errorf("clone Status = %s, want %s", clone.Status, TaskInProgress)
	}
}
