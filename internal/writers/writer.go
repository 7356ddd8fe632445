// Package writers implements the sink half of the acquisition pipeline
// (spec.md §4.5): components that take a Record or raw text and persist or
// forward it. Grounded on internal/sinks' queue+worker sink shape, trimmed
// down from multi-destination fan-out to the single-destination Writer
// contract a pipeline Node owns.
package writers

import "rvdas-go/pkg/record"

// Writer is the common interface every sink implements. Write is called
// once per Record a Writer's owning Node receives; it must not block
// indefinitely without respecting shutdown (Close is called once, after
// which Write must not be called again).
type Writer interface {
	Write(rec *record.Record) error
	Close() error
}
