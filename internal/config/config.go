package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	apperrors "rvdas-go/pkg/errors"
)

// Config is the process's ambient settings: everything rvdasd needs
// before it can even look at a cruise definition file -- where to find
// one, where to put the sqlite control store, what to listen on, and how
// loudly to log. Follows the usual load-then-validate-then-apply-
// defaults shape, trimmed to this system's actual knobs (SPEC_FULL.md's
// AMBIENT STACK section): no enterprise security/tenant/SLO blocks, since
// nothing in this system's scope consumes them.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Control  ControlConfig  `yaml:"control"`
	Listener ListenerConfig `yaml:"listener"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// AppConfig names and logs the process.
type AppConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ControlConfig locates the cruise definition file and the sqlite store
// backing the ControlStore (spec.md §4.7/§6).
type ControlConfig struct {
	CruiseDefinitionFile string `yaml:"cruise_definition_file"`
	StorePath            string `yaml:"store_path"`
}

// ListenerConfig is the record-store HTTP surface's bind address
// (internal/listener; spec.md's "listener factory", explicitly not the
// admin REST surface).
type ListenerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MetricsConfig is the Prometheus scrape server's bind address.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TracingConfig mirrors internal/tracing.Config; kept separate so
// internal/config doesn't need to import internal/tracing just to
// describe its on-disk shape -- internal/app converts this into a
// tracing.Config at wiring time.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	ServiceName string            `yaml:"service_name"`
	Exporter    string            `yaml:"exporter"`
	Endpoint    string            `yaml:"endpoint"`
	SampleRate  float64           `yaml:"sample_rate"`
	Headers     map[string]string `yaml:"headers"`
}

// Default returns the baseline configuration applied before any file or
// environment override.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:      "rvdasd",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Control: ControlConfig{
			CruiseDefinitionFile: "cruise.yaml",
			StorePath:            "rvdas.db",
		},
		Listener: ListenerConfig{
			Enabled: true,
			Addr:    ":8080",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "rvdasd",
			Exporter:    "otlp",
			SampleRate:  1.0,
		},
	}
}

// Load reads a YAML config file (if path is non-empty and exists),
// overlays it on Default(), applies environment overrides, and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, apperrors.ConfigError("load_config", err.Error())
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, apperrors.ConfigError("load_config", "parsing "+path+": "+err.Error())
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironmentOverrides lets operators override the small set of
// operationally-relevant knobs without editing the config file.
func applyEnvironmentOverrides(cfg *Config) {
	cfg.App.LogLevel = getEnvString("RVDAS_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnvString("RVDAS_LOG_FORMAT", cfg.App.LogFormat)
	cfg.Control.CruiseDefinitionFile = getEnvString("RVDAS_CRUISE_FILE", cfg.Control.CruiseDefinitionFile)
	cfg.Control.StorePath = getEnvString("RVDAS_STORE_PATH", cfg.Control.StorePath)
	cfg.Listener.Enabled = getEnvBool("RVDAS_LISTENER_ENABLED", cfg.Listener.Enabled)
	cfg.Listener.Addr = getEnvString("RVDAS_LISTENER_ADDR", cfg.Listener.Addr)
	cfg.Metrics.Enabled = getEnvBool("RVDAS_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = getEnvString("RVDAS_METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Tracing.Enabled = getEnvBool("RVDAS_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = getEnvString("RVDAS_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
}

// Validate checks the handful of invariants that would otherwise surface
// as a confusing failure deep in cmd/rvdasd's wiring.
func Validate(cfg *Config) error {
	switch cfg.App.LogLevel {
	case "debug", "info", "warning", "warn", "error", "fatal", "panic":
	default:
		return apperrors.ConfigError("validate_config", fmt.Sprintf("invalid app.log_level %q", cfg.App.LogLevel))
	}
	if cfg.Control.CruiseDefinitionFile == "" {
		return apperrors.ConfigError("validate_config", "control.cruise_definition_file must not be empty")
	}
	if cfg.Control.StorePath == "" {
		return apperrors.ConfigError("validate_config", "control.store_path must not be empty")
	}
	if cfg.Listener.Enabled && cfg.Listener.Addr == "" {
		return apperrors.ConfigError("validate_config", "listener.addr must not be empty when listener.enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return apperrors.ConfigError("validate_config", "metrics.addr must not be empty when metrics.enabled")
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return apperrors.ConfigError("validate_config", "tracing.sample_rate must be within [0,1]")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
