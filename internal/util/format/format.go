// Package format renders byte counts, rates, and durations for status
// lines, notifications, and progress readouts.
package format

import (
	"fmt"
	"time"
)

// UnknownTime is displayed when an ETA cannot be estimated yet.
const UnknownTime = "--:--:--"

// Bytes returns a human-readable byte count ("0 B", "1.5 KB", "2.3 GB").
func Bytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Rate returns a human-readable transfer rate in bytes/second.
func Rate(bytesPerSec float64) string {
	if bytesPerSec < 1024 {
		return fmt.Sprintf("%.1f B/s", bytesPerSec)
	}
	if bytesPerSec < 1024*1024 {
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.1f MB/s", bytesPerSec/(1024*1024))
}

// Clock renders a duration as HH:MM:SS. Negative durations render as
// 00:00:00; fractions of a second are dropped.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ETA renders an estimated time remaining, or UnknownTime when no
// estimate exists.
func ETA(d time.Duration, known bool) string {
	if !known {
		return UnknownTime
	}
	return Clock(d)
}

// SizePair renders a "done / total" byte readout ("100 B / 600 B").
func SizePair(done, total int64) string {
	return Bytes(done) + " / " + Bytes(total)
}

// CountPair renders a "done / total" counter readout ("1 / 3").
func CountPair(done, total int) string {
	return fmt.Sprintf("%d / %d", done, total)
}
