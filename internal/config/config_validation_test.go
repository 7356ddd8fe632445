package config

import "testing"

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.App.LogLevel = "not-a-level"
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestValidateRejectsEmptyCruiseDefinitionFile(t *testing.T) {
	cfg := Default()
	cfg.Control.CruiseDefinitionFile = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for an empty cruise_definition_file")
	}
}

func TestValidateRejectsEmptyStorePath(t *testing.T) {
	cfg := Default()
	cfg.Control.StorePath = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for an empty store_path")
	}
}

func TestValidateRejectsEnabledListenerWithoutAddr(t *testing.T) {
	cfg := Default()
	cfg.Listener.Enabled = true
	cfg.Listener.Addr = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for an enabled listener with no addr")
	}
}

func TestValidateAllowsDisabledListenerWithoutAddr(t *testing.T) {
	cfg := Default()
	cfg.Listener.Enabled = false
	cfg.Listener.Addr = ""
	if err := Validate(cfg); err != nil {
		t.Errorf("a disabled listener shouldn't need an addr, got: %v", err)
	}
}

func TestValidateRejectsOutOfRangeSampleRate(t *testing.T) {
	cfg := Default()
	cfg.Tracing.SampleRate = 1.5
	if err := Validate(cfg); err == nil {
		t.Error("expected an error for a sample rate above 1")
	}
}
