//go:build windows
// +build windows

package cli

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableANSIOnWindows enables Virtual Terminal processing on Windows
// consoles so the progress bars' ANSI escape sequences render properly.
func enableANSIOnWindows(f *os.File) {
	handle := windows.Handle(f.Fd())
	var mode uint32

	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		const enableVirtualTerminalProcessing = 0x0004
		_ = windows.SetConsoleMode(handle, mode|enableVirtualTerminalProcessing)
	}
}
