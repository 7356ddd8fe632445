package writers

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rvdas-go/pkg/record"
)

// SplitUnit is the interval unit accepted by LogfileWriterConfig.SplitInterval,
// mirroring the original's 'H'/'M' suffix on a string like "6H" or "15M".
type SplitUnit byte

const (
	SplitHours   SplitUnit = 'H'
	SplitMinutes SplitUnit = 'M'
)

// LogfileWriterConfig configures a LogfileWriter.
type LogfileWriterConfig struct {
	// Filebase is used when no pattern routing is configured.
	Filebase string

	// Patterns maps a regex (matched against the record's rendered text)
	// to the filebase records matching it should be routed to. When set,
	// Filebase is ignored and every matching pattern receives a copy of
	// the record -- mirroring the original's "write to every filebase
	// whose regex appears in the record".
	Patterns map[string]string

	// Suffix and Header may each be a single value (applied regardless of
	// pattern) or, when PatternSuffix/PatternHeader is set, looked up per
	// matched pattern.
	Suffix        string
	PatternSuffix map[string]string
	Header        string
	PatternHeader map[string]string

	Delimiter string
	Flush     bool

	// SplitAmount/SplitUnit give the rollover interval, e.g. 24 + SplitHours
	// for the default daily file. Zero SplitAmount disables rollover.
	SplitAmount int
	SplitUnit   SplitUnit

	Quiet  bool
	Logger *logrus.Logger
}

// LogfileWriter writes timestamped records to a filebase with a date suffix
// appended, rolling to a new file when the bucket-floored timestamp crosses
// a boundary, and optionally fanning a record out to every pattern-matched
// filebase. Exact bucket-flooring and regex-routing semantics are a direct
// port of original_source/logger/writers/logfile_writer.py; the underlying
// per-filebase file handling is delegated to FileWriter.
type LogfileWriter struct {
	cfg LogfileWriterConfig

	compiledPatterns map[string]*regexp.Regexp
	interval         time.Duration
	dateLayout       string

	mu      sync.Mutex
	writers map[string]*FileWriter
}

func NewLogfileWriter(cfg LogfileWriterConfig) (*LogfileWriter, error) {
	if cfg.Filebase == "" && len(cfg.Patterns) == 0 {
		return nil, fmt.Errorf("writers: logfile writer needs a filebase or patterns")
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = "\n"
	}
	if cfg.SplitUnit == 0 {
		cfg.SplitAmount, cfg.SplitUnit = 24, SplitHours
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	interval, layout, err := splitIntervalAndLayout(cfg.SplitAmount, cfg.SplitUnit)
	if err != nil {
		return nil, err
	}

	compiled := make(map[string]*regexp.Regexp, len(cfg.Patterns))
	for pattern := range cfg.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("writers: invalid logfile pattern %q: %w", pattern, err)
		}
		compiled[pattern] = re
	}

	return &LogfileWriter{
		cfg:              cfg,
		compiledPatterns: compiled,
		interval:         interval,
		dateLayout:       layout,
		writers:          make(map[string]*FileWriter),
	}, nil
}

// splitIntervalAndLayout turns (amount, unit) into a time.Duration and a Go
// time layout for the filename suffix, matching _validate_date_format's
// even-multiple logic: an interval that divides evenly into a day (or hour)
// needs less resolution in the suffix than one that doesn't.
func splitIntervalAndLayout(amount int, unit SplitUnit) (time.Duration, string, error) {
	if amount <= 0 {
		return 0, "-2006-01-02", nil
	}
	switch unit {
	case SplitHours:
		if amount%24 == 0 {
			return time.Duration(amount) * time.Hour, "-2006-01-02", nil
		}
		return time.Duration(amount) * time.Hour, "-2006-01-02T15", nil
	case SplitMinutes:
		if amount%60 == 0 {
			return time.Duration(amount) * time.Minute, "-2006-01-02T15", nil
		}
		return time.Duration(amount) * time.Minute, "-2006-01-02T1504", nil
	default:
		return 0, "", fmt.Errorf("writers: split unit must be 'H' or 'M', got %q", unit)
	}
}

func (l *LogfileWriter) Write(rec *record.Record) error {
	if rec == nil {
		return nil
	}
	text, err := renderText(rec)
	if err != nil {
		return err
	}

	if len(l.compiledPatterns) == 0 {
		return l.writeTo("fixed", l.cfg.Filebase, l.cfg.Suffix, l.cfg.Header, rec)
	}

	matched := false
	for pattern, filebase := range l.cfg.Patterns {
		if l.compiledPatterns[pattern].MatchString(text) {
			matched = true
			suffix := l.cfg.Suffix
			if l.cfg.PatternSuffix != nil {
				suffix = l.cfg.PatternSuffix[pattern]
			}
			header := l.cfg.Header
			if l.cfg.PatternHeader != nil {
				header = l.cfg.PatternHeader[pattern]
			}
			if err := l.writeTo(pattern, filebase, suffix, header, rec); err != nil {
				return err
			}
		}
	}
	if !matched && !l.cfg.Quiet {
		l.cfg.Logger.WithField("text", text).Warn("logfile writer: no pattern matched record")
	}
	return nil
}

func (l *LogfileWriter) writeTo(key, filebase, suffix, header string, rec *record.Record) error {
	l.mu.Lock()
	fw, ok := l.writers[key]
	if !ok {
		var err error
		fw, err = NewFileWriter(FileWriterConfig{
			Filename:    filebase,
			PathSuffix:  suffix,
			Delimiter:   l.cfg.Delimiter,
			Flush:       l.cfg.Flush,
			SplitByTime: l.interval,
			TimeLayout:  l.dateLayout,
			Header:      header,
			Logger:      l.cfg.Logger,
		})
		if err != nil {
			l.mu.Unlock()
			return err
		}
		l.writers[key] = fw
	}
	l.mu.Unlock()
	return fw.Write(rec)
}

func (l *LogfileWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, fw := range l.writers {
		if err := fw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
