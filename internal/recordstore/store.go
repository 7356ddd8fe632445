// Package recordstore defines the pluggable record-store abstraction of
// spec.md §4.8: a polymorphic interface consumed by writers (and, in
// principle, by a future query surface), with one concrete in-memory
// adapter. Grounded on pkg/persistence/batch_persistence.go's in-memory
// map + mutex + JSON-snapshot shape, adapted from "batches pending
// delivery" to "rows in a typed table."
//
// Wiring a real SQL/Mongo backend here is explicitly out of scope (spec.md
// §1's non-goal on database drivers for specific backends); the type
// inference and schema-evolution contract below is the part of
// original_source/database/postgresql_connector.py and
// mongo_record_connector.py worth keeping, translated into Go, not their
// driver calls.
package recordstore

import "rvdas-go/pkg/record"

// SeekOrigin mirrors io.Seek's Whence values for Store.Seek.
type SeekOrigin int

const (
	SeekStart   SeekOrigin = 0
	SeekCurrent SeekOrigin = 1
	SeekEnd     SeekOrigin = 2
)

// Store is the record-store interface named in spec.md §4.8. Concrete
// implementations map a Record's fields to columns (or to a JSON blob, or
// to a hstore-like map); this package ships one, the in-memory Memory
// store. Type inference from the first record observed for a table
// determines its schema; writes that introduce a field not yet in the
// schema trigger an implicit ALTER-and-retry, and attempts to add a column
// that already exists are silently ignored.
type Store interface {
	TableExists(table string) bool
	CreateTableFromRecord(table string, rec *record.Record) error
	WriteRecord(table string, rec *record.Record) error

	// Read returns every record at or after row offset start.
	Read(table string, fields []string, start int) ([]*record.Record, error)

	// ReadRange returns records in the half-open row-offset range
	// [start, stop).
	ReadRange(table string, fields []string, start, stop int) ([]*record.Record, error)

	// ReadTimeRange returns records whose Timestamp falls in the
	// half-open range [start, stop).
	ReadTimeRange(table string, fields []string, start, stop float64) ([]*record.Record, error)

	// Seek repositions the table's cursor and returns the new absolute
	// offset. Read and ReadRange take explicit offsets and do not use the
	// cursor.
	Seek(table string, offset int, origin SeekOrigin) (int, error)

	DeleteTable(table string) error
	Close() error
}
