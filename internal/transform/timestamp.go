package transform

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"rvdas-go/pkg/record"
	"rvdas-go/pkg/timestamp"
)

// nmeaTimePrefixes are the sentence formatters whose first field after the
// talker+type is an hhmmss[.ss] UTC time-of-day (spec.md §4.4
// "TimestampTransform").
var nmeaTimePrefixes = []string{"GGA", "RMC", "GLL", "ZDA", "PASHR", "GBS", "PSXN,26"}

var nmeaHHMMSS = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})(\.\d+)?$`)

// TimestampTransform prepends a formatted timestamp to a text record. By
// default it uses system time; when UseNMEATimestamp is set, it extracts
// time-of-day from a recognized NMEA sentence and falls back to the most
// recent NMEA-extracted time if it is within NMEATimestampTimeout, or to
// system time if that's stale.
type TimestampTransform struct {
	TimeFormat           string
	UseNMEATimestamp     bool
	NMEATimestampTimeout time.Duration

	lastNMEATime    time.Time
	haveLastNMEA    bool
	now             func() time.Time
}

func NewTimestampTransform(timeFormat string) *TimestampTransform {
	if timeFormat == "" {
		timeFormat = timestamp.TimeFormat
	}
	return &TimestampTransform{TimeFormat: timeFormat, now: time.Now}
}

func (t *TimestampTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	text, ok := rec.Fields["text"]
	if !ok {
		return nil
	}
	s, ok := text.(string)
	if !ok {
		return nil
	}

	var ts time.Time
	if t.UseNMEATimestamp {
		if extracted, found := extractNMEATime(s, t.now()); found {
			ts = extracted
			t.lastNMEATime = extracted
			t.haveLastNMEA = true
		} else if t.haveLastNMEA && t.now().Sub(t.lastNMEATime) <= t.NMEATimestampTimeout {
			ts = t.lastNMEATime
		} else {
			ts = t.now()
		}
	} else {
		ts = t.now()
	}

	prefix := ts.UTC().Format(convertGoLayout(t.TimeFormat))
	out := rec.Clone()
	out.Fields = map[string]record.Value{"text": prefix + " " + s}
	return single(out)
}

// convertGoLayout accepts timestamp.TimeFormat directly since it is
// already a Go reference-time layout.
func convertGoLayout(layout string) string {
	if layout == "" {
		return timestamp.TimeFormat
	}
	return layout
}

// extractNMEATime finds a recognized sentence prefix in s and parses its
// hhmmss[.ss] time-of-day field, anchored to referenceDay's calendar date.
func extractNMEATime(s string, referenceDay time.Time) (time.Time, bool) {
	for _, prefix := range nmeaTimePrefixes {
		idx := strings.Index(s, prefix)
		if idx < 0 {
			continue
		}
		rest := s[idx+len(prefix):]
		fields := strings.SplitN(strings.TrimPrefix(rest, ","), ",", 2)
		if len(fields) == 0 {
			continue
		}
		m := nmeaHHMMSS.FindStringSubmatch(fields[0])
		if m == nil {
			continue
		}
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		ss, _ := strconv.Atoi(m[3])
		nsec := 0
		if m[4] != "" {
			frac, _ := strconv.ParseFloat(m[4], 64)
			nsec = int(frac * 1e9)
		}
		y, mo, d := referenceDay.UTC().Date()
		return time.Date(y, mo, d, hh, mm, ss, nsec, time.UTC), true
	}
	return time.Time{}, false
}
