// Package convert implements the field type-conversion and NMEA lat/lon
// composition shared by RecordParser's device-driven conversion step and
// the ConvertFields transform (spec.md §4.3 step 6, §4.4 "ConvertFields").
package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"rvdas-go/pkg/record"
)

// FieldSpec names a field's target type, e.g. "float", "int", "hex_int".
type FieldSpec struct {
	DataType string
}

// LatLonSpec describes one NMEA lat/lon composition: the output field name
// is the map key in Fields' lat/lon-spec argument; ValueField and
// DirField name the two source fields (e.g. "lat_value", "lat_dir").
type LatLonSpec struct {
	ValueField string
	DirField   string
}

var log = logrus.StandardLogger()

// typeConverters maps a target type name to a value -> value converter.
// Recognized names mirror convert_fields.py's TYPE_MAP.
var typeConverters = map[string]func(record.Value) (record.Value, error){
	"float":  toFloat,
	"double": toFloat,
	"int":    toInt,
	"short":  toInt,
	"ushort": toInt,
	"uint":   toInt,
	"long":   toInt,
	"ubyte":  toInt,
	"byte":   toInt,
	"str":    toStr,
	"char":   toStr,
	"string": toStr,
	"text":   toStr,
	"bool":   toBool,
	"boolean": toBool,
	"hex_int": toHexInt,
	"hex":     toHexInt,
}

// Fields converts entries of fields in place according to fieldSpecs,
// composes any lat/lon pairs named in latLonSpecs, optionally deletes the
// lat/lon source fields and/or any field not touched by a spec, and
// returns the resulting map (nil if empty, matching spec.md's "returns
// null if no fields survive").
func Fields(
	fields map[string]record.Value,
	fieldSpecs map[string]FieldSpec,
	latLonSpecs map[string]LatLonSpec,
	deleteSourceFields bool,
	deleteUnconvertedFields bool,
	quiet bool,
) map[string]record.Value {
	if len(fields) == 0 {
		return nil
	}

	processed := map[string]bool{}

	for name, spec := range fieldSpecs {
		val, ok := fields[name]
		if !ok || spec.DataType == "" {
			continue
		}
		converter, ok := typeConverters[spec.DataType]
		if !ok {
			if !quiet {
				log.WithFields(logrus.Fields{"field": name, "type": spec.DataType}).Warn("convert: unknown type requested")
			}
			continue
		}
		converted, err := converter(val)
		if err != nil {
			if !quiet {
				log.WithFields(logrus.Fields{"field": name, "value": val, "type": spec.DataType}).
					Warn("convert: failed to convert field")
			}
			continue
		}
		fields[name] = converted
		processed[name] = true
	}

	for target, spec := range latLonSpecs {
		val, okV := fields[spec.ValueField]
		dir, okD := fields[spec.DirField]
		if !okV || !okD {
			continue
		}
		degrees, ok := LatLon(val, fmt.Sprintf("%v", dir))
		if !ok {
			continue
		}
		fields[target] = degrees
		processed[target] = true

		if deleteSourceFields {
			processed[spec.ValueField] = true
			processed[spec.DirField] = true
			if spec.ValueField != target {
				delete(fields, spec.ValueField)
			}
			if spec.DirField != target {
				delete(fields, spec.DirField)
			}
		}
	}

	if deleteUnconvertedFields {
		for name := range fields {
			if !processed[name] {
				delete(fields, name)
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// LatLon converts an NMEA DDMM.MMMM value and cardinal direction (N/S/E/W)
// to signed decimal degrees, rounded to 5 decimals.
func LatLon(value record.Value, direction string) (float64, bool) {
	raw, err := toFloatValue(value)
	if err != nil {
		return 0, false
	}
	degrees := math.Trunc(raw / 100)
	minutes := raw - degrees*100
	decimal := degrees + minutes/60

	switch strings.ToUpper(direction) {
	case "S", "W":
		decimal = -decimal
	}

	return roundTo(decimal, 5), true
}

func roundTo(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}

func toFloatValue(v record.Value) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, fmt.Errorf("convert: cannot interpret %T as a number", v)
	}
}

func toFloat(v record.Value) (record.Value, error) {
	f, err := toFloatValue(v)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// toInt mirrors convert_fields.py's special case: a numeric string like
// "123.0" is accepted by parsing through float first, since Go's
// strconv.Atoi (like Python's int()) rejects a fractional literal outright.
func toInt(v record.Value) (record.Value, error) {
	switch val := v.(type) {
	case string:
		trimmed := strings.TrimSpace(val)
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return int64(f), nil
		}
		i, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, err
		}
		return i, nil
	case float64:
		return int64(val), nil
	case float32:
		return int64(val), nil
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("convert: cannot interpret %T as an int", v)
	}
}

func toStr(v record.Value) (record.Value, error) {
	return fmt.Sprintf("%v", v), nil
}

func toBool(v record.Value) (record.Value, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(val))
	case int64:
		return val != 0, nil
	case float64:
		return val != 0, nil
	default:
		return nil, fmt.Errorf("convert: cannot interpret %T as a bool", v)
	}
}

// toHexInt accepts "1A", "0x1A", "0X1a".
func toHexInt(v record.Value) (record.Value, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("convert: hex_int requires a string, got %T", v)
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	i, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return nil, err
	}
	return i, nil
}
