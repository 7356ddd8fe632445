package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCruiseFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

const validCruiseYAML = `
cruise:
  id: NBP2601
loggers:
  gyro:
    configs: [gyro-on, gyro-off]
modes:
  underway:
    gyro: gyro-on
  off:
    gyro: gyro-off
default_mode: off
configs:
  gyro-on:
    reader1:
      class: logfile_reader
      kwargs:
        path: /tmp/gyro.log
    writer1:
      class: file_writer
      subscriptions: [reader1]
      kwargs:
        path: /tmp/out.log
  gyro-off: {}
`

func TestLoadCruiseDefinitionValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cruise.yaml")
	writeCruiseFile(t, path, validCruiseYAML)

	def, err := LoadCruiseDefinition(path)
	if err != nil {
		t.Fatalf("LoadCruiseDefinition: %v", err)
	}
	if def.Cruise.ID != "NBP2601" {
		t.Errorf("expected cruise id NBP2601, got %q", def.Cruise.ID)
	}
	if def.DefaultMode != "off" {
		t.Errorf("expected default_mode off, got %q", def.DefaultMode)
	}
	if _, ok := def.Loggers["gyro"]; !ok {
		t.Error("expected logger \"gyro\" to be present")
	}
	onConfig, ok := def.Configs["gyro-on"]
	if !ok {
		t.Fatal("expected config \"gyro-on\" to be present")
	}
	reader, ok := onConfig["reader1"]
	if !ok || reader.Class != "logfile_reader" {
		t.Errorf("expected reader1 to decode as a logfile_reader node, got %+v", reader)
	}
	writer, ok := onConfig["writer1"]
	if !ok || len(writer.Subscriptions) != 1 || writer.Subscriptions[0] != "reader1" {
		t.Errorf("expected writer1 to subscribe to reader1, got %+v", writer)
	}
}

func TestLoadCruiseDefinitionRejectsUndefinedLoggerInMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cruise.yaml")
	writeCruiseFile(t, path, `
modes:
  underway:
    ghost_logger: some-config
configs:
  some-config: {}
`)

	if _, err := LoadCruiseDefinition(path); err == nil {
		t.Error("expected an error for a mode referencing an undefined logger")
	}
}

func TestLoadCruiseDefinitionRejectsUndefinedConfigInMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cruise.yaml")
	writeCruiseFile(t, path, `
loggers:
  gyro:
    configs: [gyro-on]
modes:
  underway:
    gyro: missing-config
`)

	if _, err := LoadCruiseDefinition(path); err == nil {
		t.Error("expected an error for a mode referencing an undefined config")
	}
}

func TestLoadCruiseDefinitionRejectsUnknownDefaultMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cruise.yaml")
	writeCruiseFile(t, path, `
default_mode: nope
modes:
  underway: {}
`)

	if _, err := LoadCruiseDefinition(path); err == nil {
		t.Error("expected an error for a default_mode that isn't a defined mode")
	}
}

func TestLoadCruiseDefinitionResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeCruiseFile(t, filepath.Join(dir, "loggers.yaml"), "loggers:\n  gyro:\n    configs: [gyro-on]\n")
	main := filepath.Join(dir, "cruise.yaml")
	writeCruiseFile(t, main, "includes: loggers.yaml\nconfigs:\n  gyro-on: {}\n")

	def, err := LoadCruiseDefinition(main)
	if err != nil {
		t.Fatalf("LoadCruiseDefinition: %v", err)
	}
	if _, ok := def.Loggers["gyro"]; !ok {
		t.Error("expected included logger definition to be merged in")
	}
}
