// Package timestamp parses and formats the timestamp representations used
// throughout the pipeline: ISO 8601 (the wire default), Julian day numbers,
// and raw epoch seconds, per spec.md §6 ("Timestamp utilities").
package timestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the default envelope timestamp layout: ISO 8601 UTC with
// exactly three fractional-second digits (milliseconds). Parse with this
// layout rejects other fraction lengths; ParseISO8601 accepts none or one
// to nine digits.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// DateFormat is the date part of LogfileWriter's day-aligned file suffix
// ("-2006-01-02").
const DateFormat = "2006-01-02"

// isoLayouts are tried in order when parsing an ISO 8601 string whose
// fractional-second precision isn't known up front.
var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
}

// julianEpochOffset is the Julian Date of the Unix epoch
// (1970-01-01T00:00:00Z), in days.
const julianEpochOffset = 2440587.5

// Now returns the current time as epoch seconds, matching the "use current
// system time" fallback in spec.md §4.3 step 3.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// ParseISO8601 parses an ISO 8601 timestamp (with or without a literal Z and
// with variable fractional-second precision) into epoch seconds.
//
// ParseISO8601("1970-01-01T00:00:10.0Z") == 10.0.
func ParseISO8601(s string) (float64, error) {
	var lastErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return unixSeconds(t), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("timestamp: could not parse %q as ISO 8601: %w", s, lastErr)
}

// FormatISO8601 renders epoch seconds as the default envelope layout.
func FormatISO8601(ts float64) string {
	return Format(ts, TimeFormat)
}

// Parse parses a timestamp string using a Go reference-time layout (the
// "configured time format" of spec.md §4.3/§4.5). An empty layout falls back
// to TimeFormat.
func Parse(s, layout string) (float64, error) {
	if layout == "" {
		layout = TimeFormat
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp: could not parse %q with layout %q: %w", s, layout, err)
	}
	return unixSeconds(t), nil
}

// Format renders epoch seconds using a Go reference-time layout, always in
// UTC; FormatIn renders in a given location.
func Format(ts float64, layout string) string {
	if layout == "" {
		layout = TimeFormat
	}
	return toTime(ts).UTC().Format(layout)
}

// FormatIn renders epoch seconds using a Go reference-time layout in the
// given location.
func FormatIn(ts float64, layout string, loc *time.Location) string {
	if layout == "" {
		layout = TimeFormat
	}
	if loc == nil {
		loc = time.UTC
	}
	return toTime(ts).In(loc).Format(layout)
}

// ParseEpoch parses a bare epoch-seconds string (integer or float) into
// epoch seconds.
func ParseEpoch(s string) (float64, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp: could not parse %q as epoch seconds: %w", s, err)
	}
	return f, nil
}

// ToJulianDay converts epoch seconds to an astronomical Julian Date.
func ToJulianDay(ts float64) float64 {
	return ts/86400.0 + julianEpochOffset
}

// FromJulianDay converts an astronomical Julian Date to epoch seconds.
func FromJulianDay(jd float64) float64 {
	return (jd - julianEpochOffset) * 86400.0
}

func toTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
