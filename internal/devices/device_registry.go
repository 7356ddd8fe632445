// Package devices loads device and device-type definitions (spec.md §4.2
// and §6) and exposes, for a given data_id, the field-rename map,
// per-field type spec, per-field metadata, and compiled message-type
// patterns a RecordParser needs.
package devices

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// FieldPattern is one compiled message_type -> regex entry from a
// DeviceType's "format" section. MessageType is empty when the format was
// declared as a bare list rather than a {message_type: regex} mapping.
type FieldPattern struct {
	MessageType string
	Regex       *regexp.Regexp
}

// DeviceType is the static descriptor of a named wire format: one or more
// field patterns, a raw field name -> type spec, and optional per-field
// metadata.
type DeviceType struct {
	Name          string
	Patterns      []FieldPattern
	Fields        map[string]string            // raw field name -> type ("float","int","str","bool","hex","nmea_lat","nmea_lon")
	FieldMetadata map[string]map[string]string // raw field name -> {units, description, ...}
}

// Device associates a data_id with a DeviceType and a raw -> canonical
// field rename map.
type Device struct {
	DataID     string
	DeviceType string
	Rename     map[string]string // raw field name -> canonical field name
}

// Lookup is what RecordParser needs once it has extracted a data_id.
type Lookup struct {
	DeviceTypeName string
	Rename         map[string]string
	Fields         map[string]string
	FieldMetadata  map[string]map[string]string
	Patterns       []FieldPattern
}

// Registry holds every loaded Device and DeviceType, keyed by name (which
// for a Device is also its data_id).
type Registry struct {
	logger      *logrus.Logger
	devices     map[string]*Device
	deviceTypes map[string]*DeviceType
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		logger:      logger,
		devices:     map[string]*Device{},
		deviceTypes: map[string]*DeviceType{},
	}
}

// Load resolves every path (each possibly containing glob wildcards),
// recursively expands "includes", deep-merges sibling keys, and populates
// the registry's devices and device_types. Duplicate names across files
// warn; the last definition wins.
func (r *Registry) Load(paths []string) error {
	merged := doc{}
	for _, spec := range paths {
		matches, err := resolveIncludePaths(spec, ".")
		if err != nil {
			return fmt.Errorf("devices: %w", err)
		}
		if len(matches) == 0 {
			r.logger.WithField("path", spec).Warn("devices: no files matched path spec")
			continue
		}
		for _, path := range matches {
			fileDoc, err := loadFile(path, map[string]bool{})
			if err != nil {
				return err
			}
			for _, key := range []string{"devices", "device_types"} {
				prev, _ := merged[key].(map[string]interface{})
				next, _ := fileDoc[key].(map[string]interface{})
				for name := range next {
					if _, dup := prev[name]; dup {
						r.logger.WithFields(logrus.Fields{"path": path, "section": key, "name": name}).
							Warn("devices: duplicate definition, last one wins")
					}
				}
			}
			merged = deepMerge(merged, fileDoc)
		}
	}

	rawDevices, err := mappingOf(merged, "devices")
	if err != nil {
		return err
	}
	rawDeviceTypes, err := mappingOf(merged, "device_types")
	if err != nil {
		return err
	}

	for name, def := range rawDeviceTypes {
		dt, err := parseDeviceType(name, def)
		if err != nil {
			return err
		}
		if _, exists := r.deviceTypes[name]; exists {
			r.logger.WithField("device_type", name).Warn("devices: duplicate device_type definition, last one wins")
		}
		r.deviceTypes[name] = dt
	}

	for name, def := range rawDevices {
		d, err := parseDevice(name, def)
		if err != nil {
			return err
		}
		if _, exists := r.devices[name]; exists {
			r.logger.WithField("device", name).Warn("devices: duplicate device definition, last one wins")
		}
		r.devices[name] = d
	}

	return nil
}

// mappingOf returns merged[key] coerced to a map, or an empty map if absent;
// a non-mapping value for a present key is a load error (spec.md §4.2).
func mappingOf(merged doc, key string) (map[string]interface{}, error) {
	v, ok := merged[key]
	if !ok {
		return map[string]interface{}{}, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("devices: top-level %q must be a mapping, got %T", key, v)
	}
	return m, nil
}

func parseDeviceType(name string, raw interface{}) (*DeviceType, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("devices: device_type %q must be a mapping, got %T", name, raw)
	}

	dt := &DeviceType{
		Name:          name,
		Fields:        map[string]string{},
		FieldMetadata: map[string]map[string]string{},
	}

	if format, ok := m["format"]; ok {
		patterns, err := parseFormat(format)
		if err != nil {
			return nil, fmt.Errorf("devices: device_type %q: %w", name, err)
		}
		dt.Patterns = patterns
	}

	if fields, ok := m["fields"]; ok {
		fm, ok := fields.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("devices: device_type %q: \"fields\" must be a mapping", name)
		}
		for field, spec := range fm {
			switch v := spec.(type) {
			case string:
				dt.Fields[field] = v
			case map[string]interface{}:
				if dtype, ok := v["type"].(string); ok {
					dt.Fields[field] = dtype
				}
				meta := map[string]string{}
				for _, mk := range []string{"units", "description"} {
					if s, ok := v[mk].(string); ok {
						meta[mk] = s
					}
				}
				if len(meta) > 0 {
					dt.FieldMetadata[field] = meta
				}
			default:
				return nil, fmt.Errorf("devices: device_type %q: field %q has unsupported spec %T", name, field, spec)
			}
		}
	}

	if len(dt.Patterns) == 0 && len(dt.Fields) == 0 {
		return nil, fmt.Errorf("devices: device_type %q has neither \"fields\" nor \"format\"/\"messages\"", name)
	}

	return dt, nil
}

// parseFormat accepts either a {message_type: regex} mapping or a bare list
// of regexes (anonymous message_type).
func parseFormat(format interface{}) ([]FieldPattern, error) {
	var patterns []FieldPattern
	switch v := format.(type) {
	case map[string]interface{}:
		for msgType, re := range v {
			s, ok := re.(string)
			if !ok {
				return nil, fmt.Errorf("format entry %q must be a regex string", msgType)
			}
			compiled, err := regexp.Compile(s)
			if err != nil {
				return nil, fmt.Errorf("format entry %q: bad regex: %w", msgType, err)
			}
			patterns = append(patterns, FieldPattern{MessageType: msgType, Regex: compiled})
		}
	case []interface{}:
		for _, re := range v {
			s, ok := re.(string)
			if !ok {
				return nil, fmt.Errorf("format list entries must be regex strings")
			}
			compiled, err := regexp.Compile(s)
			if err != nil {
				return nil, fmt.Errorf("bad regex %q: %w", s, err)
			}
			patterns = append(patterns, FieldPattern{Regex: compiled})
		}
	default:
		return nil, fmt.Errorf("\"format\" must be a mapping or list, got %T", format)
	}
	return patterns, nil
}

func parseDevice(name string, raw interface{}) (*Device, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("devices: device %q must be a mapping, got %T", name, raw)
	}

	deviceType, _ := m["device_type"].(string)
	d := &Device{
		DataID:     name,
		DeviceType: deviceType,
		Rename:     map[string]string{},
	}

	if fields, ok := m["fields"]; ok {
		fm, ok := fields.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("devices: device %q: \"fields\" must be a mapping", name)
		}
		for raw, canonical := range fm {
			canon, ok := canonical.(string)
			if !ok {
				return nil, fmt.Errorf("devices: device %q: rename target for %q must be a string", name, raw)
			}
			d.Rename[raw] = canon
		}
	}

	return d, nil
}

// Lookup returns the parser-facing view for a data_id, or false if no
// device is registered under that id.
func (r *Registry) Lookup(dataID string) (Lookup, bool) {
	d, ok := r.devices[dataID]
	if !ok {
		return Lookup{}, false
	}
	dt, ok := r.deviceTypes[d.DeviceType]
	if !ok {
		r.logger.WithFields(logrus.Fields{"device": dataID, "device_type": d.DeviceType}).
			Warn("devices: device references unknown device_type")
		return Lookup{}, false
	}
	return Lookup{
		DeviceTypeName: dt.Name,
		Rename:         d.Rename,
		Fields:         dt.Fields,
		FieldMetadata:  dt.FieldMetadata,
		Patterns:       dt.Patterns,
	}, true
}

// Devices returns every known device, for diagnostics and tests.
func (r *Registry) Devices() map[string]*Device {
	return r.devices
}

// DeviceTypes returns every known device type, for diagnostics and tests.
func (r *Registry) DeviceTypes() map[string]*DeviceType {
	return r.deviceTypes
}
