package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/fileferry/fileferry/internal/diskspace"
)

// PerFileError records a failure copying one file. The job records it on
// the task and continues with the next file.
type PerFileError struct {
	Path string
	Err  error
}

func (e *PerFileError) Error() string {
	return fmt.Sprintf("copying %s: %v", e.Path, e.Err)
}

func (e *PerFileError) Unwrap() error { return e.Err }

// JobFatalError aborts the whole job: the destination volume is gone,
// read-only, or out of space for the work that remains. Remaining tasks
// are left Pending.
type JobFatalError struct {
	Err error
}

func (e *JobFatalError) Error() string {
	return fmt.Sprintf("transfer aborted: %v", e.Err)
}

func (e *JobFatalError) Unwrap() error { return e.Err }

// IsJobFatal checks if an error is (or wraps) a JobFatalError.
func IsJobFatal(err error) bool {
	var e *JobFatalError
	return errors.As(err, &e)
}

// skipError marks a task as skipped rather than errored: the source file
// disappeared between enumeration and copy, which is not a failure of
// the transfer itself.
type skipError struct {
	err error
}

func (e *skipError) Error() string { return e.err.Error() }
func (e *skipError) Unwrap() error { return e.err }

func isSkip(err error) bool {
	var e *skipError
	return errors.As(err, &e)
}

// classifyDestError sorts a destination-side error into per-file or
// job-fatal. Volume-level conditions (no space, read-only, device gone)
// end the job; everything else (permissions, bad names) is confined to
// the file.
func classifyDestError(path string, err error) error {
	if err == nil {
		return nil
	}
	if diskspace.IsInsufficientSpaceError(err) {
		return &JobFatalError{Err: err}
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EROFS) {
		return &JobFatalError{Err: err}
	}
	return &PerFileError{Path: path, Err: err}
}

// classifySrcError sorts a source-side error: a vanished file is a skip,
// anything else (permissions, I/O) is a per-file error.
func classifySrcError(path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return &skipError{err: err}
	}
	return &PerFileError{Path: path, Err: err}
}
