package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid, got: %v", err)
	}

	if cfg.Pipeline.MaxQueueSize != 10 {
		t.Errorf("expected default max_queue_size 10, got %d", cfg.Pipeline.MaxQueueSize)
	}
	if cfg.Pipeline.TargetFPS != 15 {
		t.Errorf("expected default target_fps 15, got %d", cfg.Pipeline.TargetFPS)
	}
	if cfg.Metrics.Window != 30*time.Second {
		t.Errorf("expected default metrics window 30s, got %v", cfg.Metrics.Window)
	}
	if cfg.Metrics.MaxFrameHistory != 1000 {
		t.Errorf("expected default max_frame_history 1000, got %d", cfg.Metrics.MaxFrameHistory)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"empty signal address", func(c *Config) { c.Signal.Address = "" }},
		{"zero queue size", func(c *Config) { c.Pipeline.MaxQueueSize = 0 }},
		{"negative target fps", func(c *Config) { c.Pipeline.TargetFPS = -1 }},
		{"zero metrics window", func(c *Config) { c.Metrics.Window = 0 }},
		{"zero frame history", func(c *Config) { c.Metrics.MaxFrameHistory = 0 }},
		{"zero sample interval", func(c *Config) { c.Metrics.SampleInterval = 0 }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"tracing enabled without url", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.JaegerURL = ""
		}},
		{"tracing sample rate out of range", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 2.0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got: %v", err)
	}
	if cfg.Pipeline.MaxQueueSize != 10 {
		t.Errorf("expected default queue size, got %d", cfg.Pipeline.MaxQueueSize)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
pipeline:
  max_queue_size: 4
  target_fps: 30
metrics:
  window: 10s
  max_frame_history: 50
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pipeline.MaxQueueSize != 4 {
		t.Errorf("expected max_queue_size 4, got %d", cfg.Pipeline.MaxQueueSize)
	}
	if cfg.Pipeline.TargetFPS != 30 {
		t.Errorf("expected target_fps 30, got %d", cfg.Pipeline.TargetFPS)
	}
	if cfg.Metrics.Window != 10*time.Second {
		t.Errorf("expected window 10s, got %v", cfg.Metrics.Window)
	}
	// Untouched sections keep defaults.
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default server address, got %s", cfg.Server.Address)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VISIONRELAY_MAX_QUEUE_SIZE", "7")
	t.Setenv("VISIONRELAY_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Pipeline.MaxQueueSize != 7 {
		t.Errorf("expected env override queue size 7, got %d", cfg.Pipeline.MaxQueueSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override log level debug, got %s", cfg.Logging.Level)
	}
}
