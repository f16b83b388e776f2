package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/fileferry/fileferry/internal/logging"
	"github.com/fileferry/fileferry/internal/pathutil"
	ustrings "github.com/fileferry/fileferry/internal/util/strings"
)

const desktopTitle = "FileFerry"

// DesktopConfig holds desktop notification configuration.
type DesktopConfig struct {
	// Enabled determines if desktop notifications are sent at all.
	Enabled bool

	// ShowCompletion shows a notification when a transfer completes.
	ShowCompletion bool

	// ShowFailure shows a notification when a transfer fails.
	ShowFailure bool

	// ShowFileErrors shows a notification for every skipped file.
	ShowFileErrors bool
}

// DefaultDesktopConfig returns the default desktop notification
// configuration.
func DefaultDesktopConfig() *DesktopConfig {
	return &DesktopConfig{
		Enabled:        true,
		ShowCompletion: true,
		ShowFailure:    true,
		ShowFileErrors: false, // Disabled by default to avoid spam on flaky media
	}
}

// DesktopNotifier sends operating system notifications through beeep:
// toasts on Windows, NSUserNotificationCenter on macOS, D-Bus on Linux.
// Send failures are logged and otherwise ignored; a missing notification
// daemon must never affect a transfer.
// v1.2.0: Added desktop mirroring of job outcomes.
type DesktopNotifier struct {
	logger *logging.Logger
	cfg    DesktopConfig
	mu     sync.RWMutex
}

// NewDesktopNotifier creates a notifier with the given configuration.
// A nil config uses the defaults.
func NewDesktopNotifier(cfg *DesktopConfig, logger *logging.Logger) *DesktopNotifier {
	if cfg == nil {
		cfg = DefaultDesktopConfig()
	}
	return &DesktopNotifier{logger: logger, cfg: *cfg}
}

// SetEnabled enables or disables notifications.
func (d *DesktopNotifier) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.Enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (d *DesktopNotifier) IsEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg.Enabled
}

// TransferComplete announces a finished transfer with its summary line.
func (d *DesktopNotifier) TransferComplete(dest, summary string) {
	if !d.allowed(func(c DesktopConfig) bool { return c.ShowCompletion }) {
		return
	}
	message := fmt.Sprintf("%s\n%s", summary, pathutil.ShortenForDisplay(dest, 60))
	if err := beeep.Notify(desktopTitle, message, ""); err != nil {
		d.warn(err, "failed to send completion notification")
	}
}

// TransferFailed announces a dead transfer. Uses the alert variant
// where the platform has one, falling back to a plain notification.
func (d *DesktopNotifier) TransferFailed(reason string) {
	if !d.allowed(func(c DesktopConfig) bool { return c.ShowFailure }) {
		return
	}
	message := fmt.Sprintf("Transfer failed: %s", ustrings.Truncate(reason, 100))
	if err := beeep.Alert(desktopTitle, message, ""); err != nil {
		if err := beeep.Notify(desktopTitle, message, ""); err != nil {
			d.warn(err, "failed to send failure notification")
		}
	}
}

// TransferCancelled announces a user-stopped transfer.
func (d *DesktopNotifier) TransferCancelled() {
	if !d.allowed(func(c DesktopConfig) bool { return c.ShowCompletion }) {
		return
	}
	if err := beeep.Notify(desktopTitle, "Transfer cancelled", ""); err != nil {
		d.warn(err, "failed to send cancellation notification")
	}
}

// FileSkipped announces one skipped file. Off by default.
func (d *DesktopNotifier) FileSkipped(relPath, reason string) {
	if !d.allowed(func(c DesktopConfig) bool { return c.ShowFileErrors }) {
		return
	}
	message := fmt.Sprintf("Skipped %s\n%s",
		ustrings.Truncate(relPath, 40), ustrings.Truncate(reason, 80))
	if err := beeep.Notify(desktopTitle, message, ""); err != nil {
		d.warn(err, "failed to send skip notification")
	}
}

func (d *DesktopNotifier) allowed(check func(DesktopConfig) bool) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg.Enabled && check(d.cfg)
}

func (d *DesktopNotifier) warn(err error, msg string) {
	if d.logger == nil {
		return
	}
	d.logger.Warn().Err(err).Msg(msg)
}
