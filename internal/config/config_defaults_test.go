package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rvdasd.yaml")
	if err := os.WriteFile(path, []byte("app:\n  log_level: debug\nlistener:\n  addr: :9999\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != "debug" {
		t.Errorf("expected app.log_level overridden to debug, got %q", cfg.App.LogLevel)
	}
	if cfg.Listener.Addr != ":9999" {
		t.Errorf("expected listener.addr overridden to :9999, got %q", cfg.Listener.Addr)
	}
	// Unmentioned fields should keep their defaults.
	if cfg.Metrics.Addr != Default().Metrics.Addr {
		t.Errorf("expected metrics.addr to keep its default, got %q", cfg.Metrics.Addr)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should not error: %v", err)
	}
	if cfg.App.Name != Default().App.Name {
		t.Errorf("expected defaults when config file is missing")
	}
}

func TestEnvironmentOverridesWinOverFileAndDefaults(t *testing.T) {
	os.Setenv("RVDAS_LOG_LEVEL", "error")
	defer os.Unsetenv("RVDAS_LOG_LEVEL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != "error" {
		t.Errorf("expected env override to win, got %q", cfg.App.LogLevel)
	}
}
