// Package localfs enumerates local source trees for transfer jobs. It
// produces the ordered sequence of files to copy with sizes resolved
// eagerly, detects symbolic-link cycles instead of walking them forever,
// and streams results so very large trees never have to be fully
// materialized before a transfer starts.
package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// FileEntry describes one file found under a source root.
type FileEntry struct {
	// RelPath is the path relative to the enumeration root, in native
	// separators. The destination path for a task is dest root + RelPath.
	RelPath string

	// AbsPath is the absolute source path.
	AbsPath string

	// Size is the file size in bytes at enumeration time.
	Size int64

	// Mode is the file's mode bits, used to carry permissions to the
	// destination.
	Mode fs.FileMode

	// ModTime is the source modification time.
	ModTime time.Time
}

// ErrSymlinkCycle reports that following symbolic links revisited a
// directory already on the current walk path.
var ErrSymlinkCycle = errors.New("symbolic link cycle detected")

// EnumerationError indicates the source tree could not be enumerated:
// the root is missing or unreadable, or a symlink cycle was found. It
// aborts a job before any transfer begins.
type EnumerationError struct {
	Root string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerating %s: %v", e.Root, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// IsEnumerationError checks if an error is (or wraps) an EnumerationError.
func IsEnumerationError(err error) bool {
	var e *EnumerationError
	return errors.As(err, &e)
}
