package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadAppConfigDefaultsWithoutFile checks that a missing implicit config is fine.
func TestLoadAppConfigDefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadAppConfig("")
	if err != nil {
		t.Fatalf("LoadAppConfig() error = %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Runner.EventBuffer != 1000 {
		t.Fatalf("event buffer = %d, want 1000", cfg.Runner.EventBuffer)
	}
	if cfg.Engine.ProgressInterval != 250*time.Millisecond {
		t.Fatalf("progress interval = %v", cfg.Engine.ProgressInterval)
	}
	if filepath.Base(cfg.SettingsPath) != "settings.json" {
		t.Fatalf("settings path = %q", cfg.SettingsPath)
	}
}

// TestLoadAppConfigExplicitMissingFails checks explicit paths must exist.
func TestLoadAppConfigExplicitMissingFails(t *testing.T) {
	if _, err := LoadAppConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

// TestLoadAppConfigFileAndEnv checks file values and environment overrides.
func TestLoadAppConfigFileAndEnv(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.yaml")
	content := []byte("log:\n  level: debug\nengine:\n  progress_interval: 1s\nhistory:\n  enabled: false\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MEDIADL_LOG_LEVEL", "warn")

	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("log level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Engine.ProgressInterval != time.Second {
		t.Fatalf("progress interval = %v, want 1s", cfg.Engine.ProgressInterval)
	}
	if cfg.History.Enabled {
		t.Fatal("expected history disabled")
	}
}
