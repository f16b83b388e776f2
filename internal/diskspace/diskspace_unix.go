//go:build !windows

package diskspace

import (
	"golang.org/x/sys/unix"
)

// availableSpace returns the bytes available to non-root users on the
// filesystem containing dir.
func availableSpace(dir string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}

	// Bavail = blocks available to non-root users
	// Bsize = block size in bytes
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
