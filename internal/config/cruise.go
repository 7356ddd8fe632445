// Package config loads the ambient process settings (config.go)
// and the cruise definition file (cruise.go) spec.md §6 specifies: the
// authoritative description of a cruise's loggers, the configurations
// each may assume, the named modes bundling them, and the opaque
// reader/transform/writer pipeline spec behind each configuration.
package config

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	apperrors "rvdas-go/pkg/errors"

	"rvdas-go/internal/docmerge"
	"rvdas-go/internal/parser"
	"rvdas-go/internal/pipeline"
	"rvdas-go/pkg/backpressure"
)

// CruiseInfo is the cruise definition file's top-level "cruise" key.
type CruiseInfo struct {
	ID             string
	Start          string
	End            string
	ConfigFilename string
}

// LoggerDef is one entry in the "loggers" mapping: the configs a named
// logger may be assigned, by name.
type LoggerDef struct {
	Configs []string
}

// Mode is one entry in the "modes" mapping: for each logger name, the
// config name it runs under this mode.
type Mode map[string]string

// CruiseDefinition is the fully loaded and validated cruise definition
// file (spec.md §6's "Cruise definition file" schema), with every
// "configs" entry's opaque pipeline spec decoded into a pipeline.NodeSpec
// map ready to hand to pipeline.NewGraph.
type CruiseDefinition struct {
	Cruise      CruiseInfo
	Loggers     map[string]LoggerDef
	Modes       map[string]Mode
	DefaultMode string
	Configs     map[string]map[string]pipeline.NodeSpec
}

// LoadCruiseDefinition reads the cruise definition file at path (YAML or
// JSON), resolves "includes" and deep-merges per spec.md §4.2 (via
// internal/docmerge), decodes every named config's opaque pipeline spec
// into pipeline.NodeSpecs, and enforces the invariants spec.md §6 states:
// every mode's logger is in loggers; every mode's config is in configs;
// default_mode, if present, is in modes.
func LoadCruiseDefinition(path string) (*CruiseDefinition, error) {
	d, err := docmerge.Load(path)
	if err != nil {
		return nil, apperrors.ConfigError("load_cruise_definition", err.Error())
	}

	def := &CruiseDefinition{
		Loggers: map[string]LoggerDef{},
		Modes:   map[string]Mode{},
		Configs: map[string]map[string]pipeline.NodeSpec{},
	}

	if raw, ok := d["cruise"]; ok {
		if err := decodeInto(raw, &def.Cruise); err != nil {
			return nil, apperrors.ConfigError("load_cruise_definition", "cruise: "+err.Error())
		}
	}

	if raw, ok := d["loggers"]; ok {
		loggers, ok := raw.(map[string]interface{})
		if !ok {
			return nil, apperrors.ConfigError("load_cruise_definition", "loggers must be a mapping")
		}
		for name, v := range loggers {
			var ld LoggerDef
			if err := decodeInto(v, &ld); err != nil {
				return nil, apperrors.ConfigError("load_cruise_definition", fmt.Sprintf("loggers.%s: %s", name, err))
			}
			def.Loggers[name] = ld
		}
	}

	if raw, ok := d["default_mode"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, apperrors.ConfigError("load_cruise_definition", "default_mode must be a string")
		}
		def.DefaultMode = s
	}

	if raw, ok := d["configs"]; ok {
		configs, ok := raw.(map[string]interface{})
		if !ok {
			return nil, apperrors.ConfigError("load_cruise_definition", "configs must be a mapping")
		}
		for name, v := range configs {
			specs, err := decodePipelineSpec(v)
			if err != nil {
				return nil, apperrors.ConfigError("load_cruise_definition", fmt.Sprintf("configs.%s: %s", name, err))
			}
			def.Configs[name] = specs
		}
	}

	if raw, ok := d["modes"]; ok {
		modes, ok := raw.(map[string]interface{})
		if !ok {
			return nil, apperrors.ConfigError("load_cruise_definition", "modes must be a mapping")
		}
		for name, v := range modes {
			assignments, ok := v.(map[string]interface{})
			if !ok {
				return nil, apperrors.ConfigError("load_cruise_definition", fmt.Sprintf("modes.%s must be a mapping", name))
			}
			mode := Mode{}
			for logger, cfg := range assignments {
				cfgName, ok := cfg.(string)
				if !ok {
					return nil, apperrors.ConfigError("load_cruise_definition", fmt.Sprintf("modes.%s.%s must be a config name string", name, logger))
				}
				mode[logger] = cfgName
			}
			def.Modes[name] = mode
		}
	}

	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// validate enforces spec.md §6's stated cruise-file invariants.
func (d *CruiseDefinition) validate() error {
	for modeName, mode := range d.Modes {
		loggerNames := make([]string, 0, len(mode))
		for logger := range mode {
			loggerNames = append(loggerNames, logger)
		}
		sort.Strings(loggerNames)
		for _, logger := range loggerNames {
			cfgName := mode[logger]
			if _, ok := d.Loggers[logger]; !ok {
				return apperrors.ConfigError("validate_cruise_definition",
					fmt.Sprintf("mode %q references undefined logger %q", modeName, logger))
			}
			if _, ok := d.Configs[cfgName]; !ok {
				return apperrors.ConfigError("validate_cruise_definition",
					fmt.Sprintf("mode %q assigns logger %q an undefined config %q", modeName, logger, cfgName))
			}
		}
	}

	if d.DefaultMode != "" {
		if _, ok := d.Modes[d.DefaultMode]; !ok {
			return apperrors.ConfigError("validate_cruise_definition",
				fmt.Sprintf("default_mode %q is not a defined mode", d.DefaultMode))
		}
	}
	return nil
}

// decodePipelineSpec decodes one "configs" entry -- a mapping of node name
// to {class, kwargs, subscriptions, parser, queue_capacity, queue_policy}
// -- into a map of pipeline.NodeSpec, the typed form pipeline.NewGraph
// consumes.
func decodePipelineSpec(v interface{}) (map[string]pipeline.NodeSpec, error) {
	nodes, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("pipeline spec must be a mapping of node name to node definition")
	}

	out := make(map[string]pipeline.NodeSpec, len(nodes))
	for name, raw := range nodes {
		nodeMap, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("node %q definition must be a mapping", name)
		}

		var wire struct {
			Class         string
			Kwargs        map[string]interface{}
			Subscriptions []string
			Parser        *parser.Config
			QueueCapacity int
			QueuePolicy   string
		}
		if err := decodeInto(nodeMap, &wire); err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		if wire.Class == "" {
			return nil, fmt.Errorf("node %q: missing class", name)
		}

		spec := pipeline.NodeSpec{
			Class:         wire.Class,
			Kwargs:        wire.Kwargs,
			Subscriptions: wire.Subscriptions,
			Parser:        wire.Parser,
			QueueCapacity: wire.QueueCapacity,
		}
		if wire.QueuePolicy == "drop_oldest" {
			spec.QueuePolicy = backpressure.PolicyDropOldest
		}
		out[name] = spec
	}
	return out, nil
}

// decodeInto fills out from src via mapstructure, case-insensitively and
// weakly typed (YAML/JSON-sourced values), matching internal/pipeline's
// kwargs-decoding idiom.
func decodeInto(src interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(src)
}
