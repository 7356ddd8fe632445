package control

import (
	"encoding/json"
	"fmt"

	"rvdas-go/internal/config"
	"rvdas-go/internal/pipeline"
)

// FromCruiseDefinition converts a loaded, validated cruise definition file
// (internal/config.CruiseDefinition, whose "configs" entries are already
// decoded into typed pipeline.NodeSpec maps) into the ConfigurationSpec
// shape API.LoadConfiguration consumes. ControlStore never interprets a
// pipeline spec's contents, only stores and retrieves it, so each config
// is serialized to JSON here -- the one point where the typed,
// pipeline.NewGraph-ready form and the opaque, store-ready form meet.
func FromCruiseDefinition(def *config.CruiseDefinition) (ConfigurationSpec, error) {
	spec := ConfigurationSpec{
		CruiseID:       def.Cruise.ID,
		Start:          def.Cruise.Start,
		End:            def.Cruise.End,
		ConfigFilename: def.Cruise.ConfigFilename,
		DefaultMode:    def.DefaultMode,
		Loggers:        make(map[string][]string, len(def.Loggers)),
		Modes:          make(map[string]map[string]string, len(def.Modes)),
		ConfigSpecs:    make(map[string]string, len(def.Configs)),
	}

	for name, ld := range def.Loggers {
		spec.Loggers[name] = append([]string(nil), ld.Configs...)
	}

	for modeName, mode := range def.Modes {
		assignments := make(map[string]string, len(mode))
		for logger, cfg := range mode {
			assignments[logger] = cfg
		}
		spec.Modes[modeName] = assignments
	}

	for name, nodes := range def.Configs {
		raw, err := json.Marshal(nodes)
		if err != nil {
			return ConfigurationSpec{}, fmt.Errorf("control: serializing config %q: %w", name, err)
		}
		spec.ConfigSpecs[name] = string(raw)
	}

	return spec, nil
}

// ToPipelineSpec decodes one stored, serialized config (as produced by
// FromCruiseDefinition and persisted in a LoggerConfig row) back into the
// typed node map pipeline.NewGraph consumes.
func ToPipelineSpec(serialized string) (map[string]pipeline.NodeSpec, error) {
	var nodes map[string]pipeline.NodeSpec
	if err := json.Unmarshal([]byte(serialized), &nodes); err != nil {
		return nil, fmt.Errorf("control: decoding stored pipeline spec: %w", err)
	}
	return nodes, nil
}
