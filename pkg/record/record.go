// Package record defines Record, the universal data envelope that flows
// through the acquisition pipeline: Readers produce it, Transforms consume
// and emit it, Writers persist or forward it.
//
// A Record is immutable from a consumer's point of view -- transforms return
// new values rather than mutating the one they were given. The zero value is
// not a usable Record; use New or FromJSON.
package record

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value is the type a field or metadata value may hold: int64, float64,
// string, bool, or nil.
type Value = interface{}

// Record is the in-memory structured datum described in spec.md §3.
type Record struct {
	DataID      string                       `json:"data_id"`
	MessageType string                       `json:"message_type"`
	Timestamp   float64                      `json:"timestamp"`
	Fields      map[string]Value             `json:"fields"`
	Metadata    map[string]map[string]string `json:"metadata"`
}

// New builds a Record from a field map, with empty DataID/MessageType and no
// metadata.
func New(timestamp float64, fields map[string]Value) *Record {
	if fields == nil {
		fields = map[string]Value{}
	}
	return &Record{
		Timestamp: timestamp,
		Fields:    fields,
		Metadata:  map[string]map[string]string{},
	}
}

// Clone returns a deep copy so a transform can mutate its own working copy
// without disturbing the Record the caller still holds.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	fields := make(map[string]Value, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	meta := make(map[string]map[string]string, len(r.Metadata))
	for k, m := range r.Metadata {
		mm := make(map[string]string, len(m))
		for mk, mv := range m {
			mm[mk] = mv
		}
		meta[k] = mm
	}
	return &Record{
		DataID:      r.DataID,
		MessageType: r.MessageType,
		Timestamp:   r.Timestamp,
		Fields:      fields,
		Metadata:    meta,
	}
}

// ToJSON renders the canonical JSON form described in spec.md §4.1 and §6:
// {"data_id", "message_type", "timestamp", "fields", "metadata"}.
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses the canonical JSON form back into a Record.
func FromJSON(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("record: invalid json: %w", err)
	}
	if r.Fields == nil {
		r.Fields = map[string]Value{}
	}
	if r.Metadata == nil {
		r.Metadata = map[string]map[string]string{}
	}
	return &r, nil
}

// Equal reports structural equality -- the universal invariant
// from_json(to_json(r)) == r depends on this comparing values after a JSON
// round trip, so numeric field comparisons use float64 (JSON's only number
// representation).
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.DataID != other.DataID || r.MessageType != other.MessageType || r.Timestamp != other.Timestamp {
		return false
	}
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for k, v := range r.Fields {
		ov, ok := other.Fields[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	if len(r.Metadata) != len(other.Metadata) {
		return false
	}
	for k, m := range r.Metadata {
		om, ok := other.Metadata[k]
		if !ok || len(m) != len(om) {
			return false
		}
		for mk, mv := range m {
			if om[mk] != mv {
				return false
			}
		}
	}
	return true
}

func valuesEqual(a, b Value) bool {
	na, aIsNum := asFloat(a)
	nb, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		return na == nb
	}
	return a == b
}

func asFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// TimedValue is one (timestamp, value) observation of a single field, as
// used by the "field dict" normalization form and by the stateful
// transforms' caches.
type TimedValue struct {
	Timestamp float64
	Value     Value
}

// Normalize converts one of several accepted shapes into a slice of Records,
// per spec.md §4.1:
//
//   - a single *Record
//   - a []*Record
//   - a map[string]Value with "timestamp" and "fields" keys
//   - a "field dict" of the form {field_name: []TimedValue}, which is
//     re-sorted into one Record per distinct timestamp
func Normalize(v interface{}) ([]*Record, error) {
	switch val := v.(type) {
	case *Record:
		if val == nil {
			return nil, nil
		}
		return []*Record{val}, nil

	case []*Record:
		return val, nil

	case map[string]interface{}:
		if ts, hasTS := val["timestamp"]; hasTS {
			if fields, hasFields := val["fields"]; hasFields {
				tsFloat, ok := asFloat(ts)
				if !ok {
					return nil, fmt.Errorf("record: normalize: timestamp is not numeric: %v", ts)
				}
				fieldMap, ok := fields.(map[string]Value)
				if !ok {
					if m, ok2 := fields.(map[string]interface{}); ok2 {
						fieldMap = m
					} else {
						return nil, fmt.Errorf("record: normalize: fields is not a map: %T", fields)
					}
				}
				return []*Record{New(tsFloat, fieldMap)}, nil
			}
		}
		return normalizeFieldDict(val)

	case map[string][]TimedValue:
		generic := make(map[string]interface{}, len(val))
		for k, tv := range val {
			generic[k] = tv
		}
		return normalizeFieldDict(generic)

	default:
		return nil, fmt.Errorf("record: normalize: unsupported type %T", v)
	}
}

// normalizeFieldDict handles {field_name: [(ts, value), ...]}, re-sorting
// observations into one Record per distinct timestamp, returned in
// ascending timestamp order for determinism.
func normalizeFieldDict(fields map[string]interface{}) ([]*Record, error) {
	byTimestamp := map[float64]map[string]Value{}

	for field, raw := range fields {
		tvs, ok := raw.([]TimedValue)
		if !ok {
			return nil, fmt.Errorf("record: normalize: field %q is not a []TimedValue: %T", field, raw)
		}
		for _, tv := range tvs {
			m, ok := byTimestamp[tv.Timestamp]
			if !ok {
				m = map[string]Value{}
				byTimestamp[tv.Timestamp] = m
			}
			m[field] = tv.Value
		}
	}

	timestamps := make([]float64, 0, len(byTimestamp))
	for ts := range byTimestamp {
		timestamps = append(timestamps, ts)
	}
	sort.Float64s(timestamps)

	records := make([]*Record, 0, len(timestamps))
	for _, ts := range timestamps {
		records = append(records, New(ts, byTimestamp[ts]))
	}
	return records, nil
}
