package transform

import (
	"fmt"
	"regexp"
	"strings"

	"rvdas-go/pkg/record"
)

// FilterTransform keeps only the named fields (the inverse of Strip).
type FilterTransform struct {
	Fields map[string]bool
}

func NewFilterTransform(fields []string) *FilterTransform {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return &FilterTransform{Fields: m}
}

func (f *FilterTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	kept := make(map[string]record.Value, len(f.Fields))
	for name := range f.Fields {
		if v, ok := rec.Fields[name]; ok {
			kept[name] = v
		}
	}
	out.Fields = kept
	if len(out.Fields) == 0 {
		return nil
	}
	return single(out)
}

// SelectTransform emits only records whose data_id is in the allowed set.
type SelectTransform struct {
	DataIDs map[string]bool
}

func NewSelectTransform(dataIDs []string) *SelectTransform {
	m := make(map[string]bool, len(dataIDs))
	for _, id := range dataIDs {
		m[id] = true
	}
	return &SelectTransform{DataIDs: m}
}

func (s *SelectTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil || !s.DataIDs[rec.DataID] {
		return nil
	}
	return single(rec)
}

// StripTransform removes the named fields, keeping everything else.
type StripTransform struct {
	Fields map[string]bool
}

func NewStripTransform(fields []string) *StripTransform {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return &StripTransform{Fields: m}
}

func (s *StripTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	for name := range s.Fields {
		delete(out.Fields, name)
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return single(out)
}

// SplitTransform fans a multi-field record out into one single-field
// record per field, preserving timestamp and data_id.
type SplitTransform struct{}

func (s *SplitTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	out := make([]*record.Record, 0, len(rec.Fields))
	for name, val := range rec.Fields {
		r := record.New(rec.Timestamp, map[string]record.Value{name: val})
		r.DataID = rec.DataID
		r.MessageType = rec.MessageType
		out = append(out, r)
	}
	return out
}

// RenameTransform renames fields per a raw -> canonical map; fields not
// named are passed through unchanged.
type RenameTransform struct {
	Rename map[string]string
}

func NewRenameTransform(rename map[string]string) *RenameTransform {
	return &RenameTransform{Rename: rename}
}

func (r *RenameTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	renamed := make(map[string]record.Value, len(out.Fields))
	for name, val := range out.Fields {
		target := name
		if mapped, ok := r.Rename[name]; ok {
			target = mapped
		}
		renamed[target] = val
	}
	out.Fields = renamed
	return single(out)
}

// FormatTransform renders a record's fields into Template by replacing
// each "{field}" placeholder with that field's value formatted with %v
// (the analogue of the original's "%(field)s" style format string).
// Placeholders naming a field the record lacks are left in the text
// unchanged.
type FormatTransform struct {
	Template string
}

func (f *FormatTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	result := f.Template
	for name, val := range rec.Fields {
		result = strings.ReplaceAll(result, "{"+name+"}", fmt.Sprintf("%v", val))
	}
	out := rec.Clone()
	out.Fields = map[string]record.Value{"text": result}
	return single(out)
}

// ToJSONTransform renders a Record as its canonical JSON form.
type ToJSONTransform struct{}

func (t *ToJSONTransform) ApplyRaw(rec *record.Record) ([]byte, error) {
	if rec == nil {
		return nil, nil
	}
	return rec.ToJSON()
}

func (t *ToJSONTransform) Apply(rec *record.Record) []*record.Record {
	data, err := t.ApplyRaw(rec)
	if err != nil || data == nil {
		return nil
	}
	out := rec.Clone()
	out.Fields = map[string]record.Value{"json": string(data)}
	return single(out)
}

// FromJSONTransform parses the canonical JSON form back into a Record.
type FromJSONTransform struct{}

func (t *FromJSONTransform) ApplyText(data []byte) *record.Record {
	rec, err := record.FromJSON(data)
	if err != nil {
		return nil
	}
	return rec
}

func (t *FromJSONTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	raw, ok := rec.Fields["json"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	parsed, err := record.FromJSON([]byte(s))
	if err != nil {
		return nil
	}
	return single(parsed)
}

// Bound is one field:lower:upper triple for ValueFilter, with either
// bound optionally absent (nil).
type Bound struct {
	Lower *float64
	Upper *float64
}

// ValueFilterTransform drops individual out-of-bounds field values, per
// field, keeping the rest of the record intact.
type ValueFilterTransform struct {
	Bounds map[string]Bound
}

func (v *ValueFilterTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	for name, bound := range v.Bounds {
		val, ok := out.Fields[name]
		if !ok {
			continue
		}
		f, ok := asFloat(val)
		if !ok {
			continue
		}
		if (bound.Lower != nil && f < *bound.Lower) || (bound.Upper != nil && f > *bound.Upper) {
			delete(out.Fields, name)
		}
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return single(out)
}

// ValueFilterIgnoreTransform drops the entire record if any named field's
// value matches its configured exact-match filter value. It emits a single
// warning on first filter, then goes silent -- warned tracks that state.
type ValueFilterIgnoreTransform struct {
	ExactMatch map[string]record.Value
	Logger     WarnOnce
	warned     bool
}

// WarnOnce is the minimal logging surface ValueFilterIgnoreTransform needs;
// satisfied by *logrus.Logger.
type WarnOnce interface {
	Warn(args ...interface{})
}

func (v *ValueFilterIgnoreTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	for name, want := range v.ExactMatch {
		if val, ok := rec.Fields[name]; ok && fmt.Sprintf("%v", val) == fmt.Sprintf("%v", want) {
			if !v.warned && v.Logger != nil {
				v.Logger.Warn("transform: dropping record matching ignore filter")
				v.warned = true
			}
			return nil
		}
	}
	return single(rec)
}

// RegexFilterTransform keeps only records whose matching field, converted
// to a string, matches a regex.
type RegexFilterTransform struct {
	Field string
	Regex *regexp.Regexp
}

func (r *RegexFilterTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	val, ok := rec.Fields[r.Field]
	if !ok {
		return nil
	}
	if !r.Regex.MatchString(fmt.Sprintf("%v", val)) {
		return nil
	}
	return single(rec)
}

func asFloat(v record.Value) (float64, bool) {
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
