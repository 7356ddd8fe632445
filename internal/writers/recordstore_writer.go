package writers

import (
	"fmt"

	"rvdas-go/internal/recordstore"
	"rvdas-go/pkg/record"
)

// RecordStoreWriterConfig configures a RecordStoreWriter.
type RecordStoreWriterConfig struct {
	Store recordstore.Store

	// Table is used when TableField is empty; TableField, when set,
	// picks the destination table per-record from rec.DataID (falling
	// back to Table if DataID is empty).
	Table      string
	TableField bool
}

// RecordStoreWriter adapts a recordstore.Store into the Writer interface
// (spec.md §4.8), creating the destination table from the first record it
// sees for that table.
type RecordStoreWriter struct {
	cfg RecordStoreWriterConfig
}

func NewRecordStoreWriter(cfg RecordStoreWriterConfig) (*RecordStoreWriter, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("writers: record store is required")
	}
	if cfg.Table == "" && !cfg.TableField {
		return nil, fmt.Errorf("writers: either a fixed table or TableField routing is required")
	}
	return &RecordStoreWriter{cfg: cfg}, nil
}

func (w *RecordStoreWriter) tableFor(rec *record.Record) string {
	if w.cfg.TableField && rec.DataID != "" {
		return rec.DataID
	}
	return w.cfg.Table
}

func (w *RecordStoreWriter) Write(rec *record.Record) error {
	if rec == nil {
		return nil
	}
	table := w.tableFor(rec)
	if table == "" {
		return fmt.Errorf("writers: record has no data_id and no fixed table is configured")
	}

	if !w.cfg.Store.TableExists(table) {
		if err := w.cfg.Store.CreateTableFromRecord(table, rec); err != nil {
			return fmt.Errorf("writers: failed to create table %q: %w", table, err)
		}
	}
	if err := w.cfg.Store.WriteRecord(table, rec); err != nil {
		return fmt.Errorf("writers: failed to write record to table %q: %w", table, err)
	}
	return nil
}

func (w *RecordStoreWriter) Close() error {
	return w.cfg.Store.Close()
}
