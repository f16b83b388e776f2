// Package config provides configuration management for FileFerry.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/ini.v1"

	"github.com/fileferry/fileferry/internal/constants"
)

// Config holds the persistent settings shared by the CLI commands.
// Command-line flags override individual values per invocation; the
// file only supplies defaults.
//
// Config file location:
//   - Windows: %APPDATA%\FileFerry\fileferry.conf
//   - Unix: ~/.config/fileferry/fileferry.conf
//
// INI format:
//
//	[transfer]
//	buffer_size_kb = 256
//	sample_interval_ms = 100
//	max_concurrent_jobs = 1
//	space_margin_percent = 5
//	preserve_mod_time = true
//	fsync = false
//	verify = false
//
//	[enumeration]
//	follow_symlinks = false
//	exclude_hidden = false
//
//	[rate]
//	window_seconds = 5
//	smoothing_alpha = 0.25
//	idle_timeout_seconds = 3
//
//	[notifications]
//	enabled = true
//	max_visible = 3
//	show_completion = true
//	show_failure = true
//	show_file_errors = false
type Config struct {
	Transfer      TransferConfig
	Enumeration   EnumerationConfig
	Rate          RateConfig
	Notifications NotificationsConfig
}

// TransferConfig contains settings for the copy workers.
type TransferConfig struct {
	// BufferSizeKB is the copy chunk size in KiB.
	// Minimum: 4, Maximum: 8192, Default: 256
	BufferSizeKB int `ini:"buffer_size_kb"`

	// SampleIntervalMs is the minimum gap between intra-file progress
	// samples in milliseconds.
	// Minimum: 10, Maximum: 1000, Default: 100
	SampleIntervalMs int `ini:"sample_interval_ms"`

	// MaxConcurrentJobs is how many jobs may run at once.
	// Minimum: 1, Maximum: 4, Default: 1
	MaxConcurrentJobs int `ini:"max_concurrent_jobs"`

	// SpaceMarginPercent is the free-space safety margin applied on top
	// of the remaining bytes before a job starts writing.
	// Minimum: 0, Maximum: 50, Default: 5
	SpaceMarginPercent float64 `ini:"space_margin_percent"`

	// PreserveModTime carries source modification times to destinations.
	// Default: true
	PreserveModTime bool `ini:"preserve_mod_time"`

	// Fsync forces a sync before closing each destination file.
	// Default: false
	Fsync bool `ini:"fsync"`

	// Verify re-reads each destination and compares checksums.
	// Default: false
	Verify bool `ini:"verify"`
}

// EnumerationConfig contains default options for the source walk.
type EnumerationConfig struct {
	// FollowSymlinks descends into symlinked directories.
	// Default: false
	FollowSymlinks bool `ini:"follow_symlinks"`

	// ExcludeHidden skips dot-prefixed files and directories.
	// Default: false
	ExcludeHidden bool `ini:"exclude_hidden"`
}

// RateConfig contains settings for the transfer rate estimator.
type RateConfig struct {
	// WindowSeconds is the sliding window the instantaneous rate is
	// computed over.
	// Minimum: 1, Maximum: 60, Default: 5
	WindowSeconds int `ini:"window_seconds"`

	// SmoothingAlpha is the EMA weight given to the newest rate.
	// Range: (0, 1], Default: 0.25
	SmoothingAlpha float64 `ini:"smoothing_alpha"`

	// IdleTimeoutSeconds is how long without progress before the rate
	// and ETA are reported as unknown.
	// Minimum: 1, Maximum: 60, Default: 3
	IdleTimeoutSeconds int `ini:"idle_timeout_seconds"`
}

// NotificationsConfig contains settings for in-app and desktop
// notifications.
type NotificationsConfig struct {
	// Enabled indicates whether desktop notifications are shown.
	// Default: true
	Enabled bool `ini:"enabled"`

	// MaxVisible is how many in-app notifications show at once; the
	// rest wait in a queue.
	// Minimum: 1, Maximum: 10, Default: 3
	MaxVisible int `ini:"max_visible"`

	// ShowCompletion shows a desktop notification when a transfer
	// completes or is cancelled.
	// Default: true
	ShowCompletion bool `ini:"show_completion"`

	// ShowFailure shows a desktop notification when a transfer fails.
	// Default: true
	ShowFailure bool `ini:"show_failure"`

	// ShowFileErrors shows a desktop notification per skipped file.
	// Default: false
	ShowFileErrors bool `ini:"show_file_errors"`
}

// Validation errors
var (
	ErrInvalidBufferSize     = errors.New("buffer_size_kb must be between 4 and 8192")
	ErrInvalidSampleInterval = errors.New("sample_interval_ms must be between 10 and 1000")
	ErrInvalidConcurrency    = errors.New("max_concurrent_jobs must be between 1 and 4")
	ErrInvalidSpaceMargin    = errors.New("space_margin_percent must be between 0 and 50")
	ErrInvalidRateWindow     = errors.New("window_seconds must be between 1 and 60")
	ErrInvalidSmoothingAlpha = errors.New("smoothing_alpha must be greater than 0 and at most 1")
	ErrInvalidIdleTimeout    = errors.New("idle_timeout_seconds must be between 1 and 60")
	ErrInvalidMaxVisible     = errors.New("max_visible must be between 1 and 10")
)

// DefaultConfigPath returns the default path for the config file.
// - Windows: %APPDATA%\FileFerry\fileferry.conf
// - Unix: ~/.config/fileferry/fileferry.conf
func DefaultConfigPath() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "FileFerry", "fileferry.conf"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "fileferry", "fileferry.conf"), nil
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Transfer: TransferConfig{
			BufferSizeKB:       constants.CopyBufferSize / 1024,
			SampleIntervalMs:   int(constants.SampleMinInterval / time.Millisecond),
			MaxConcurrentJobs:  constants.DefaultMaxConcurrentJobs,
			SpaceMarginPercent: constants.DiskSpaceBufferPercent * 100,
			PreserveModTime:    true,
		},
		Rate: RateConfig{
			WindowSeconds:      int(constants.RateWindow / time.Second),
			SmoothingAlpha:     constants.RateSmoothingAlpha,
			IdleTimeoutSeconds: int(constants.RateIdleTimeout / time.Second),
		},
		Notifications: NotificationsConfig{
			Enabled:        true,
			MaxVisible:     constants.MaxVisibleNotifications,
			ShowCompletion: true,
			ShowFailure:    true,
		},
	}
}

// Load reads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil // Return defaults if we can't determine path
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	transfer := iniFile.Section("transfer")
	cfg.Transfer.BufferSizeKB = transfer.Key("buffer_size_kb").MustInt(cfg.Transfer.BufferSizeKB)
	cfg.Transfer.SampleIntervalMs = transfer.Key("sample_interval_ms").MustInt(cfg.Transfer.SampleIntervalMs)
	cfg.Transfer.MaxConcurrentJobs = transfer.Key("max_concurrent_jobs").MustInt(cfg.Transfer.MaxConcurrentJobs)
	cfg.Transfer.SpaceMarginPercent = transfer.Key("space_margin_percent").MustFloat64(cfg.Transfer.SpaceMarginPercent)
	cfg.Transfer.PreserveModTime = transfer.Key("preserve_mod_time").MustBool(cfg.Transfer.PreserveModTime)
	cfg.Transfer.Fsync = transfer.Key("fsync").MustBool(false)
	cfg.Transfer.Verify = transfer.Key("verify").MustBool(false)

	enum := iniFile.Section("enumeration")
	cfg.Enumeration.FollowSymlinks = enum.Key("follow_symlinks").MustBool(false)
	cfg.Enumeration.ExcludeHidden = enum.Key("exclude_hidden").MustBool(false)

	rate := iniFile.Section("rate")
	cfg.Rate.WindowSeconds = rate.Key("window_seconds").MustInt(cfg.Rate.WindowSeconds)
	cfg.Rate.SmoothingAlpha = rate.Key("smoothing_alpha").MustFloat64(cfg.Rate.SmoothingAlpha)
	cfg.Rate.IdleTimeoutSeconds = rate.Key("idle_timeout_seconds").MustInt(cfg.Rate.IdleTimeoutSeconds)

	notify := iniFile.Section("notifications")
	cfg.Notifications.Enabled = notify.Key("enabled").MustBool(true)
	cfg.Notifications.MaxVisible = notify.Key("max_visible").MustInt(cfg.Notifications.MaxVisible)
	cfg.Notifications.ShowCompletion = notify.Key("show_completion").MustBool(true)
	cfg.Notifications.ShowFailure = notify.Key("show_failure").MustBool(true)
	cfg.Notifications.ShowFileErrors = notify.Key("show_file_errors").MustBool(false)

	return cfg, nil
}

// Save writes configuration to an INI file.
// Creates parent directories if they don't exist. The write goes
// through a temporary file and a rename so a crash cannot leave a
// half-written config behind.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	transfer, err := iniFile.NewSection("transfer")
	if err != nil {
		return fmt.Errorf("failed to create transfer section: %w", err)
	}
	transfer.Key("buffer_size_kb").SetValue(fmt.Sprintf("%d", cfg.Transfer.BufferSizeKB))
	transfer.Key("sample_interval_ms").SetValue(fmt.Sprintf("%d", cfg.Transfer.SampleIntervalMs))
	transfer.Key("max_concurrent_jobs").SetValue(fmt.Sprintf("%d", cfg.Transfer.MaxConcurrentJobs))
	transfer.Key("space_margin_percent").SetValue(fmt.Sprintf("%g", cfg.Transfer.SpaceMarginPercent))
	transfer.Key("preserve_mod_time").SetValue(fmt.Sprintf("%t", cfg.Transfer.PreserveModTime))
	transfer.Key("fsync").SetValue(fmt.Sprintf("%t", cfg.Transfer.Fsync))
	transfer.Key("verify").SetValue(fmt.Sprintf("%t", cfg.Transfer.Verify))

	enum, err := iniFile.NewSection("enumeration")
	if err != nil {
		return fmt.Errorf("failed to create enumeration section: %w", err)
	}
	enum.Key("follow_symlinks").SetValue(fmt.Sprintf("%t", cfg.Enumeration.FollowSymlinks))
	enum.Key("exclude_hidden").SetValue(fmt.Sprintf("%t", cfg.Enumeration.ExcludeHidden))

	rate, err := iniFile.NewSection("rate")
	if err != nil {
		return fmt.Errorf("failed to create rate section: %w", err)
	}
	rate.Key("window_seconds").SetValue(fmt.Sprintf("%d", cfg.Rate.WindowSeconds))
	rate.Key("smoothing_alpha").SetValue(fmt.Sprintf("%g", cfg.Rate.SmoothingAlpha))
	rate.Key("idle_timeout_seconds").SetValue(fmt.Sprintf("%d", cfg.Rate.IdleTimeoutSeconds))

	notify, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notify.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Notifications.Enabled))
	notify.Key("max_visible").SetValue(fmt.Sprintf("%d", cfg.Notifications.MaxVisible))
	notify.Key("show_completion").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowCompletion))
	notify.Key("show_failure").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowFailure))
	notify.Key("show_file_errors").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowFileErrors))

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is usable. All problems are
// collected and reported together rather than first-wins, so a
// hand-edited file gets fixed in one pass.
func (cfg *Config) Validate() error {
	var result *multierror.Error

	minKB := constants.MinCopyBufferSize / 1024
	maxKB := constants.MaxCopyBufferSize / 1024
	if cfg.Transfer.BufferSizeKB < minKB || cfg.Transfer.BufferSizeKB > maxKB {
		result = multierror.Append(result, ErrInvalidBufferSize)
	}
	if cfg.Transfer.SampleIntervalMs < 10 || cfg.Transfer.SampleIntervalMs > 1000 {
		result = multierror.Append(result, ErrInvalidSampleInterval)
	}
	if cfg.Transfer.MaxConcurrentJobs < 1 || cfg.Transfer.MaxConcurrentJobs > constants.MaxMaxConcurrentJobs {
		result = multierror.Append(result, ErrInvalidConcurrency)
	}
	if cfg.Transfer.SpaceMarginPercent < 0 || cfg.Transfer.SpaceMarginPercent > 50 {
		result = multierror.Append(result, ErrInvalidSpaceMargin)
	}
	if cfg.Rate.WindowSeconds < 1 || cfg.Rate.WindowSeconds > 60 {
		result = multierror.Append(result, ErrInvalidRateWindow)
	}
	if cfg.Rate.SmoothingAlpha <= 0 || cfg.Rate.SmoothingAlpha > 1 {
		result = multierror.Append(result, ErrInvalidSmoothingAlpha)
	}
	if cfg.Rate.IdleTimeoutSeconds < 1 || cfg.Rate.IdleTimeoutSeconds > 60 {
		result = multierror.Append(result, ErrInvalidIdleTimeout)
	}
	if cfg.Notifications.MaxVisible < 1 || cfg.Notifications.MaxVisible > 10 {
		result = multierror.Append(result, ErrInvalidMaxVisible)
	}
	return result.ErrorOrNil()
}

// BufferSize returns the copy buffer size in bytes.
func (cfg *Config) BufferSize() int {
	return cfg.Transfer.BufferSizeKB * 1024
}

// SampleInterval returns the minimum gap between progress samples.
func (cfg *Config) SampleInterval() time.Duration {
	return time.Duration(cfg.Transfer.SampleIntervalMs) * time.Millisecond
}

// SpaceMargin returns the free-space safety margin as a fraction.
func (cfg *Config) SpaceMargin() float64 {
	return cfg.Transfer.SpaceMarginPercent / 100
}

// RateWindow returns the sliding window for the rate estimate.
func (cfg *Config) RateWindow() time.Duration {
	return time.Duration(cfg.Rate.WindowSeconds) * time.Second
}

// RateIdleTimeout returns the idle window after which the rate is
// reported as unknown.
func (cfg *Config) RateIdleTimeout() time.Duration {
	return time.Duration(cfg.Rate.IdleTimeoutSeconds) * time.Second
}
