package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	cfg := New()

	// Check defaults
	if cfg.Transfer.BufferSizeKB != 256 {
		t.Errorf("expected default BufferSizeKB to be 256, got %d", cfg.Transfer.BufferSizeKB)
	}
	if cfg.Transfer.SampleIntervalMs != 100 {
		t.Errorf("expected default SampleIntervalMs to be 100, got %d", cfg.Transfer.SampleIntervalMs)
	}
	if cfg.Transfer.MaxConcurrentJobs != 1 {
		t.Errorf("expected default MaxConcurrentJobs to be 1, got %d", cfg.Transfer.MaxConcurrentJobs)
	}
	if !cfg.Transfer.PreserveModTime {
		t.Error("expected PreserveModTime to default to true")
	}
	if cfg.Transfer.Verify {
		t.Error("expected Verify to default to false")
	}
	if cfg.Rate.WindowSeconds != 5 {
		t.Errorf("expected default WindowSeconds to be 5, got %d", cfg.Rate.WindowSeconds)
	}
	if cfg.Rate.SmoothingAlpha != 0.25 {
		t.Errorf("expected default SmoothingAlpha to be 0.25, got %g", cfg.Rate.SmoothingAlpha)
	}
	if cfg.Notifications.MaxVisible != 3 {
		t.Errorf("expected default MaxVisible to be 3, got %d", cfg.Notifications.MaxVisible)
	}
	if !cfg.Notifications.Enabled {
		t.Error("expected Notifications.Enabled to default to true")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fileferry.conf")

	cfg := New()
	cfg.Transfer.BufferSizeKB = 512
	cfg.Transfer.MaxConcurrentJobs = 2
	cfg.Transfer.Verify = true
	cfg.Enumeration.ExcludeHidden = true
	cfg.Rate.WindowSeconds = 10
	cfg.Rate.SmoothingAlpha = 0.5
	cfg.Notifications.MaxVisible = 5
	cfg.Notifications.ShowFileErrors = true

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Transfer.BufferSizeKB != 512 {
		t.Errorf("BufferSizeKB mismatch: expected 512, got %d", loaded.Transfer.BufferSizeKB)
	}
	if loaded.Transfer.MaxConcurrentJobs != 2 {
		t.Errorf("MaxConcurrentJobs mismatch: expected 2, got %d", loaded.Transfer.MaxConcurrentJobs)
	}
	if !loaded.Transfer.Verify {
		t.Error("Verify mismatch: expected true")
	}
	if !loaded.Enumeration.ExcludeHidden {
		t.Error("ExcludeHidden mismatch: expected true")
	}
	if loaded.Rate.WindowSeconds != 10 {
		t.Errorf("WindowSeconds mismatch: expected 10, got %d", loaded.Rate.WindowSeconds)
	}
	if loaded.Rate.SmoothingAlpha != 0.5 {
		t.Errorf("SmoothingAlpha mismatch: expected 0.5, got %g", loaded.Rate.SmoothingAlpha)
	}
	if loaded.Notifications.MaxVisible != 5 {
		t.Errorf("MaxVisible mismatch: expected 5, got %d", loaded.Notifications.MaxVisible)
	}
	if !loaded.Notifications.ShowFileErrors {
		t.Error("ShowFileErrors mismatch: expected true")
	}
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load("/path/that/does/not/exist/fileferry.conf")
	if err != nil {
		t.Fatalf("Load should not fail for non-existent file: %v", err)
	}

	// Should return defaults
	if cfg.Transfer.BufferSizeKB != 256 {
		t.Error("expected default BufferSizeKB for non-existent file")
	}
	if !cfg.Notifications.Enabled {
		t.Error("expected default Notifications.Enabled for non-existent file")
	}
}

func TestLoadPartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fileferry.conf")

	// A file that only sets a couple of keys keeps defaults for the rest.
	content := "[transfer]\nbuffer_size_kb = 64\n\n[notifications]\nenabled = false\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transfer.BufferSizeKB != 64 {
		t.Errorf("BufferSizeKB = %d, want 64", cfg.Transfer.BufferSizeKB)
	}
	if cfg.Notifications.Enabled {
		t.Error("Notifications.Enabled = true, want false")
	}
	if cfg.Transfer.SampleIntervalMs != 100 {
		t.Errorf("SampleIntervalMs = %d, want default 100", cfg.Transfer.SampleIntervalMs)
	}
	if cfg.Rate.WindowSeconds != 5 {
		t.Errorf("WindowSeconds = %d, want default 5", cfg.Rate.WindowSeconds)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"buffer too small", func(c *Config) { c.Transfer.BufferSizeKB = 2 }, ErrInvalidBufferSize},
		{"buffer too large", func(c *Config) { c.Transfer.BufferSizeKB = 16384 }, ErrInvalidBufferSize},
		{"sample interval too short", func(c *Config) { c.Transfer.SampleIntervalMs = 5 }, ErrInvalidSampleInterval},
		{"zero concurrency", func(c *Config) { c.Transfer.MaxConcurrentJobs = 0 }, ErrInvalidConcurrency},
		{"too much concurrency", func(c *Config) { c.Transfer.MaxConcurrentJobs = 9 }, ErrInvalidConcurrency},
		{"negative margin", func(c *Config) { c.Transfer.SpaceMarginPercent = -1 }, ErrInvalidSpaceMargin},
		{"zero rate window", func(c *Config) { c.Rate.WindowSeconds = 0 }, ErrInvalidRateWindow},
		{"zero alpha", func(c *Config) { c.Rate.SmoothingAlpha = 0 }, ErrInvalidSmoothingAlpha},
		{"alpha above one", func(c *Config) { c.Rate.SmoothingAlpha = 1.5 }, ErrInvalidSmoothingAlpha},
		{"zero idle timeout", func(c *Config) { c.Rate.IdleTimeoutSeconds = 0 }, ErrInvalidIdleTimeout},
		{"zero max visible", func(c *Config) { c.Notifications.MaxVisible = 0 }, ErrInvalidMaxVisible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := New()
	cfg.Transfer.BufferSizeKB = 0
	cfg.Rate.SmoothingAlpha = 2
	cfg.Notifications.MaxVisible = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	for _, want := range []error{ErrInvalidBufferSize, ErrInvalidSmoothingAlpha, ErrInvalidMaxVisible} {
		if !errors.Is(err, want) {
			t.Errorf("Validate() missing %v in %v", want, err)
		}
	}
	if errors.Is(err, ErrInvalidRateWindow) {
		t.Error("Validate() reported an error for a valid field")
	}
}

func TestDerivedValues(t *testing.T) {
	cfg := New()

	if got := cfg.BufferSize(); got != 256*1024 {
		t.Errorf("BufferSize() = %d, want %d", got, 256*1024)
	}
	if got := cfg.SampleInterval().Milliseconds(); got != 100 {
		t.Errorf("SampleInterval() = %dms, want 100ms", got)
	}
	if got := cfg.SpaceMargin(); got != 0.05 {
		t.Errorf("SpaceMargin() = %g, want 0.05", got)
	}
	if got := cfg.RateWindow().Seconds(); got != 5 {
		t.Errorf("RateWindow() = %gs, want 5s", got)
	}
	if got := cfg.RateIdleTimeout().Seconds(); got != 3 {
		t.Errorf("RateIdleTimeout() = %gs, want 3s", got)
	}
}
