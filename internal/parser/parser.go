// Package parser implements RecordParser (spec.md §4.3): it extracts a
// data_id, timestamp, and field_string from a raw text record via an
// envelope regex, matches the field_string against device-type field
// patterns, converts and renames fields for registered devices, and
// periodically injects field metadata.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"rvdas-go/internal/convert"
	"rvdas-go/internal/devices"
	"rvdas-go/pkg/record"
	"rvdas-go/pkg/timestamp"
)

// DefaultRecordFormat is the permissive envelope regex: it looks for
// "data_id timestamp field_string" but still parses field_string alone
// when data_id/timestamp are absent.
const DefaultRecordFormat = `^(?:(?P<data_id>\w+)\s+(?P<timestamp>[0-9TZ:\-\.]*)\s+)?(?P<field_string>(?s).*)$`

// FieldPattern is one candidate field_string regex, optionally tagged with
// the message_type it implies when matched.
type FieldPattern struct {
	MessageType string
	Regex       *regexp.Regexp
}

// Config configures a RecordParser.
type Config struct {
	// RecordFormat is the envelope regex; DefaultRecordFormat if empty.
	RecordFormat string
	// FieldPatterns are tried in order; the first match wins. When set,
	// they take precedence over any patterns the Registry supplies.
	FieldPatterns []FieldPattern
	// DataID, if set, overrides any data_id extracted from the envelope.
	DataID string
	// TimeFormat is the layout used to parse the envelope timestamp;
	// timestamp.TimeFormat if empty.
	TimeFormat string
	// Registry supplies per-device field patterns, type conversion, and
	// renaming. May be nil.
	Registry *devices.Registry
	// MetadataInterval, if > 0, enables periodic metadata injection: a
	// field's metadata is attached at most once per this many seconds.
	MetadataInterval time.Duration
	// Quiet suppresses per-record parse-failure warnings.
	Quiet bool
	Logger *logrus.Logger
}

// Parser parses raw text records into Records per spec.md §4.3.
type Parser struct {
	cfg            Config
	envelope       *regexp.Regexp
	fieldPatterns  []FieldPattern
	metadataByName map[string]map[string]string
	lastSent       map[string]float64
	logger         *logrus.Logger
}

// New builds a Parser from cfg. Field patterns configured directly on cfg
// take precedence; otherwise patterns are drawn from the registry lazily,
// per data_id, at parse time.
func New(cfg Config) (*Parser, error) {
	format := cfg.RecordFormat
	if format == "" {
		format = DefaultRecordFormat
	}
	envelope, err := regexp.Compile(format)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Parser{
		cfg:            cfg,
		envelope:       envelope,
		fieldPatterns:  cfg.FieldPatterns,
		metadataByName: map[string]map[string]string{},
		lastSent:       map[string]float64{},
		logger:         logger,
	}, nil
}

// Parse runs the full parsing pipeline on one raw text record. It returns
// nil when the record is dropped (for example "" or no envelope match);
// it returns no error value.
func (p *Parser) Parse(raw string) *record.Record {
	if raw == "" {
		return nil
	}

	match := p.envelope.FindStringSubmatch(raw)
	if match == nil {
		if !p.cfg.Quiet {
			p.logger.WithField("record_format", p.envelope.String()).Warn("parser: unable to parse record")
		}
		return nil
	}
	groups := namedGroups(p.envelope, match)

	dataID := p.cfg.DataID
	if dataID == "" {
		dataID = groups["data_id"]
		if dataID == "" {
			if !p.cfg.Quiet {
				p.logger.Warn("parser: no data_id found in record and none specified, defaulting to \"unknown\"")
			}
			dataID = "unknown"
		}
	}

	ts := p.parseTimestamp(groups["timestamp"])

	fieldString := strings.TrimRight(groups["field_string"], " \t\r\n")
	if fieldString == "" {
		return nil
	}

	patterns := p.fieldPatterns
	var lookup devices.Lookup
	haveLookup := false
	if p.cfg.Registry != nil {
		if l, ok := p.cfg.Registry.Lookup(dataID); ok {
			lookup = l
			haveLookup = true
			if len(p.fieldPatterns) == 0 {
				patterns = toParserPatterns(l.Patterns)
			}
		}
	}

	messageType, fields, matched := matchFields(patterns, fieldString)
	if !matched {
		return nil
	}

	values := make(map[string]record.Value, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	rec := record.New(ts, values)
	rec.DataID = dataID
	rec.MessageType = messageType

	if haveLookup {
		converted := convert.Fields(rec.Fields, toFieldSpecs(lookup.Fields), nil, false, false, p.cfg.Quiet)
		if converted == nil {
			return nil
		}
		rec.Fields = converted
		if len(lookup.Rename) > 0 {
			renamed := make(map[string]record.Value, len(lookup.Rename))
			for rawName, canonical := range lookup.Rename {
				if v, ok := rec.Fields[rawName]; ok {
					renamed[canonical] = v
				}
			}
			rec.Fields = renamed
		}
		p.mergeMetadata(lookup)
	}

	if p.cfg.MetadataInterval > 0 {
		meta := p.collectMetadata(rec.Fields, ts)
		for field, m := range meta {
			rec.Metadata[field] = m
		}
	}

	return rec
}

func (p *Parser) parseTimestamp(text string) float64 {
	if text == "" {
		return timestamp.Now()
	}
	layout := p.cfg.TimeFormat
	if layout == "" {
		layout = timestamp.TimeFormat
	}
	ts, err := timestamp.Parse(text, layout)
	if err != nil {
		return timestamp.Now()
	}
	return ts
}

// mergeMetadata records the units/description metadata a device's fields
// declare, keyed by the device's canonical (renamed) field name.
func (p *Parser) mergeMetadata(lookup devices.Lookup) {
	for rawName, meta := range lookup.FieldMetadata {
		canonical := rawName
		if mapped, ok := lookup.Rename[rawName]; ok {
			canonical = mapped
		}
		m := make(map[string]string, len(meta))
		for k, v := range meta {
			m[k] = v
		}
		p.metadataByName[canonical] = m
	}
}

// collectMetadata returns the metadata to attach for fields present in
// `fields` whose last emission is missing or older than MetadataInterval.
func (p *Parser) collectMetadata(fields map[string]record.Value, ts float64) map[string]map[string]string {
	out := map[string]map[string]string{}
	interval := p.cfg.MetadataInterval.Seconds()
	for name := range fields {
		meta, ok := p.metadataByName[name]
		if !ok {
			continue
		}
		last, sent := p.lastSent[name]
		if sent && ts-last < interval {
			continue
		}
		out[name] = meta
		p.lastSent[name] = ts
	}
	return out
}

// matchFields tries each pattern in order against fieldString and returns
// the first match's named capture groups, plus the message_type the
// winning pattern was tagged with (empty for untagged/list patterns).
func matchFields(patterns []FieldPattern, fieldString string) (messageType string, fields map[string]string, matched bool) {
	for _, p := range patterns {
		m := p.Regex.FindStringSubmatch(fieldString)
		if m == nil {
			continue
		}
		return p.MessageType, namedGroups(p.Regex, m), true
	}
	return "", nil, false
}

func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	out := map[string]string{}
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" || i >= len(match) {
			continue
		}
		out[name] = match[i]
	}
	return out
}

func toParserPatterns(in []devices.FieldPattern) []FieldPattern {
	out := make([]FieldPattern, len(in))
	for i, p := range in {
		out[i] = FieldPattern{MessageType: p.MessageType, Regex: p.Regex}
	}
	return out
}

func toFieldSpecs(in map[string]string) map[string]convert.FieldSpec {
	out := make(map[string]convert.FieldSpec, len(in))
	for name, dtype := range in {
		out[name] = convert.FieldSpec{DataType: dtype}
	}
	return out
}
