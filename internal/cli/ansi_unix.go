//go:build !windows
// +build !windows

package cli

import "os"

// enableANSIOnWindows is a no-op on non-Windows platforms; Unix
// terminals support ANSI escape sequences natively.
func enableANSIOnWindows(f *os.File) {
}
