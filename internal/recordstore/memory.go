package recordstore

import (
	"fmt"
	"sync"

	"rvdas-go/pkg/record"
)

// columnType is the inferred type of a column, derived from the first
// value observed for that field.
type columnType string

const (
	colInt    columnType = "int"
	colFloat  columnType = "float"
	colString columnType = "string"
	colBool   columnType = "bool"
	colNull   columnType = "null"
)

func inferType(v record.Value) columnType {
	switch v.(type) {
	case int, int32, int64:
		return colInt
	case float32, float64:
		return colFloat
	case string:
		return colString
	case bool:
		return colBool
	default:
		return colNull
	}
}

// errMissingColumn and errDuplicateColumn model the two error conditions
// spec.md §4.8 calls out: a write referencing an unknown column triggers
// an ALTER-and-retry; an attempt to add a column that already exists is
// swallowed.
type errMissingColumn struct{ column string }

func (e errMissingColumn) Error() string { return fmt.Sprintf("recordstore: missing column %q", e.column) }

type errDuplicateColumn struct{ column string }

func (e errDuplicateColumn) Error() string {
	return fmt.Sprintf("recordstore: column %q already exists", e.column)
}

type table struct {
	columns map[string]columnType
	rows    []*record.Record
	cursor  int
}

func newTableFromRecord(rec *record.Record) *table {
	cols := make(map[string]columnType, len(rec.Fields))
	for name, v := range rec.Fields {
		cols[name] = inferType(v)
	}
	return &table{columns: cols}
}

func (t *table) addColumn(name string, typ columnType) error {
	if _, ok := t.columns[name]; ok {
		return errDuplicateColumn{column: name}
	}
	t.columns[name] = typ
	return nil
}

// checkColumns returns errMissingColumn for the first field in rec not yet
// present in the table's schema.
func (t *table) checkColumns(rec *record.Record) error {
	for name := range rec.Fields {
		if _, ok := t.columns[name]; !ok {
			return errMissingColumn{column: name}
		}
	}
	return nil
}

func (t *table) project(rec *record.Record, fields []string) *record.Record {
	if len(fields) == 0 {
		return rec
	}
	out := record.New(rec.Timestamp, map[string]record.Value{})
	out.DataID = rec.DataID
	out.MessageType = rec.MessageType
	for _, f := range fields {
		if v, ok := rec.Fields[f]; ok {
			out.Fields[f] = v
		}
	}
	return out
}

// Memory is the in-memory concrete Store adapter. Rows are appended in
// write order; ReadTimeRange does a linear scan since rows are not
// necessarily sorted by Timestamp (records can arrive out of order across
// sources feeding the same table).
type Memory struct {
	mu     sync.Mutex
	tables map[string]*table
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*table)}
}

func (m *Memory) TableExists(table string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[table]
	return ok
}

func (m *Memory) CreateTableFromRecord(name string, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[name]; ok {
		return nil
	}
	m.tables[name] = newTableFromRecord(rec)
	return nil
}

func (m *Memory) WriteRecord(name string, rec *record.Record) error {
	if rec == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		t = newTableFromRecord(rec)
		m.tables[name] = t
	}

	if err := t.checkColumns(rec); err != nil {
		missing, isMissing := err.(errMissingColumn)
		if !isMissing {
			return err
		}
		// ALTER-and-retry: add every field not yet in the schema,
		// ignoring the (expected) duplicate-column case, then recheck.
		for name, v := range rec.Fields {
			if addErr := t.addColumn(name, inferType(v)); addErr != nil {
				if _, dup := addErr.(errDuplicateColumn); !dup {
					return addErr
				}
			}
		}
		if err := t.checkColumns(rec); err != nil {
			return fmt.Errorf("recordstore: failed to reconcile schema after alter: %w", err)
		}
		_ = missing
	}

	t.rows = append(t.rows, rec.Clone())
	return nil
}

func (m *Memory) Read(name string, fields []string, start int) ([]*record.Record, error) {
	return m.ReadRange(name, fields, start, -1)
}

func (m *Memory) ReadRange(name string, fields []string, start, stop int) ([]*record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("recordstore: no such table %q", name)
	}
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop > len(t.rows) {
		stop = len(t.rows)
	}
	if start >= stop {
		return nil, nil
	}

	out := make([]*record.Record, 0, stop-start)
	for _, r := range t.rows[start:stop] {
		out = append(out, t.project(r, fields))
	}
	return out, nil
}

func (m *Memory) ReadTimeRange(name string, fields []string, start, stop float64) ([]*record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("recordstore: no such table %q", name)
	}

	var out []*record.Record
	for _, r := range t.rows {
		if r.Timestamp >= start && r.Timestamp < stop {
			out = append(out, t.project(r, fields))
		}
	}
	return out, nil
}

func (m *Memory) Seek(name string, offset int, origin SeekOrigin) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return 0, fmt.Errorf("recordstore: no such table %q", name)
	}

	var base int
	switch origin {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = t.cursor
	case SeekEnd:
		base = len(t.rows)
	default:
		return 0, fmt.Errorf("recordstore: invalid seek origin %d", origin)
	}

	newPos := base + offset
	if newPos < 0 {
		newPos = 0
	}
	if newPos > len(t.rows) {
		newPos = len(t.rows)
	}
	t.cursor = newPos
	return newPos, nil
}

func (m *Memory) DeleteTable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, name)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
