package control

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schema creates every table in spec.md §3's control-plane data model.
// The cruise/last_update tables are single-row (id=1, CHECK-enforced):
// spec.md states at most one Cruise is ever held, and LastUpdate is one
// cache-validation beacon row, not a history.
const schema = `
CREATE TABLE IF NOT EXISTS cruise (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	cruise_id TEXT NOT NULL,
	cruise_start TEXT,
	cruise_end TEXT,
	config_filename TEXT,
	loaded_time REAL NOT NULL,
	active_mode TEXT,
	default_mode TEXT
);
CREATE TABLE IF NOT EXISTS mode (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS logger (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	config_id INTEGER REFERENCES logger_config(id)
);
CREATE TABLE IF NOT EXISTS logger_config (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	logger_id INTEGER NOT NULL REFERENCES logger(id),
	spec TEXT NOT NULL,
	current_config INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS logger_config_mode (
	logger_config_id INTEGER NOT NULL REFERENCES logger_config(id),
	mode_id INTEGER NOT NULL REFERENCES mode(id),
	PRIMARY KEY (logger_config_id, mode_id)
);
CREATE TABLE IF NOT EXISTS logger_config_state (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	logger_id INTEGER NOT NULL REFERENCES logger(id),
	timestamp REAL NOT NULL,
	last_checked REAL NOT NULL,
	running INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	pid INTEGER NOT NULL,
	errors TEXT
);
CREATE TABLE IF NOT EXISTS last_update (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	timestamp REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS log_message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL NOT NULL,
	source TEXT,
	user TEXT,
	log_level TEXT,
	cruise_id TEXT,
	message TEXT
);
`

// Store is the transactional sqlite-backed ControlStore of spec.md §4.7:
// row-level CRUD plus the ability to start a transaction that holds an
// exclusive write lock for its duration (sqlite's BEGIN IMMEDIATE).
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("control: opening store: %w", err)
	}
	// The control plane is mutated from one API instance under configLock;
	// sqlite tolerates at most one writer at a time regardless, so a
	// single connection avoids SQLITE_BUSY entirely rather than retrying
	// around it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("control: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// tx runs fn inside a transaction -- the store's DSN carries
// _txlock=immediate, so every Begin() takes sqlite's exclusive write lock
// up front (BEGIN IMMEDIATE) rather than deferring it to the first write,
// per spec.md §4.7's "acquires the exclusive table lock." Commits on
// success, rolls back on error.
func (s *Store) tx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("control: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("control: commit transaction: %w", err)
	}
	return nil
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// --- Cruise ---

func (s *Store) replaceCruise(tx *sql.Tx, c Cruise) error {
	if _, err := tx.Exec(`DELETE FROM logger_config_state`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM logger_config_mode`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM logger_config`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM logger`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM mode`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM cruise`); err != nil {
		return err
	}
	_, err := tx.Exec(
		`INSERT INTO cruise (id, cruise_id, cruise_start, cruise_end, config_filename, loaded_time, active_mode, default_mode)
		 VALUES (1, ?, ?, ?, ?, ?, NULL, ?)`,
		c.ID, c.Start, c.End, c.ConfigFilename, c.LoadedTime, c.DefaultMode,
	)
	return err
}

func (s *Store) getCruise(q queryer) (*Cruise, error) {
	row := q.QueryRow(`SELECT cruise_id, cruise_start, cruise_end, config_filename, loaded_time, active_mode, default_mode FROM cruise WHERE id = 1`)
	var c Cruise
	var start, end, filename, activeMode, defaultMode sql.NullString
	if err := row.Scan(&c.ID, &start, &end, &filename, &c.LoadedTime, &activeMode, &defaultMode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.Start, c.End, c.ConfigFilename = start.String, end.String, filename.String
	c.ActiveMode, c.DefaultMode = activeMode.String, defaultMode.String
	return &c, nil
}

func (s *Store) setActiveMode(tx *sql.Tx, mode string) error {
	_, err := tx.Exec(`UPDATE cruise SET active_mode = ? WHERE id = 1`, mode)
	return err
}

// --- Mode ---

func (s *Store) createMode(tx *sql.Tx, name string) (int64, error) {
	res, err := tx.Exec(`INSERT INTO mode (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) getModeByName(q queryer, name string) (*Mode, error) {
	row := q.QueryRow(`SELECT id, name FROM mode WHERE name = ?`, name)
	var m Mode
	if err := row.Scan(&m.ID, &m.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) listModes(q queryer) ([]Mode, error) {
	rows, err := q.Query(`SELECT id, name FROM mode ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Mode
	for rows.Next() {
		var m Mode
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Logger ---

func (s *Store) createLogger(tx *sql.Tx, name string) (int64, error) {
	res, err := tx.Exec(`INSERT INTO logger (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) getLoggerByName(q queryer, name string) (*Logger, error) {
	row := q.QueryRow(`SELECT id, name, config_id FROM logger WHERE name = ?`, name)
	var l Logger
	var configID sql.NullInt64
	if err := row.Scan(&l.ID, &l.Name, &configID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if configID.Valid {
		l.ConfigID = &configID.Int64
	}
	return &l, nil
}

func (s *Store) listLoggers(q queryer) ([]Logger, error) {
	rows, err := q.Query(`SELECT id, name, config_id FROM logger ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Logger
	for rows.Next() {
		var l Logger
		var configID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.Name, &configID); err != nil {
			return nil, err
		}
		if configID.Valid {
			l.ConfigID = &configID.Int64
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) setLoggerConfig(tx *sql.Tx, loggerID int64, configID *int64) error {
	_, err := tx.Exec(`UPDATE logger SET config_id = ? WHERE id = ?`, nullableInt64(configID), loggerID)
	return err
}

// --- LoggerConfig ---

func (s *Store) createLoggerConfig(tx *sql.Tx, loggerID int64, name, spec string, enabled bool) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO logger_config (name, logger_id, spec, current_config, enabled) VALUES (?, ?, ?, 0, ?)`,
		name, loggerID, spec, enabled,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) addLoggerConfigMode(tx *sql.Tx, loggerConfigID, modeID int64) error {
	_, err := tx.Exec(`INSERT OR IGNORE INTO logger_config_mode (logger_config_id, mode_id) VALUES (?, ?)`, loggerConfigID, modeID)
	return err
}

// clearCurrentConfig unsets current_config on every LoggerConfig belonging
// to loggerID, per spec.md §4.7's set_active_mode step 3 ("unset
// current_config on its existing config").
func (s *Store) clearCurrentConfig(tx *sql.Tx, loggerID int64) error {
	_, err := tx.Exec(`UPDATE logger_config SET current_config = 0 WHERE logger_id = ?`, loggerID)
	return err
}

func (s *Store) setCurrentConfig(tx *sql.Tx, loggerConfigID int64, current bool) error {
	_, err := tx.Exec(`UPDATE logger_config SET current_config = ? WHERE id = ?`, current, loggerConfigID)
	return err
}

// getLoggerConfigForMode finds the LoggerConfig associated with both
// loggerID and modeName, if any.
func (s *Store) getLoggerConfigForMode(q queryer, loggerID int64, modeName string) (*LoggerConfig, error) {
	row := q.QueryRow(`
		SELECT lc.id, lc.name, lc.logger_id, lc.spec, lc.current_config, lc.enabled
		FROM logger_config lc
		JOIN logger_config_mode lcm ON lcm.logger_config_id = lc.id
		JOIN mode m ON m.id = lcm.mode_id
		WHERE lc.logger_id = ? AND m.name = ?`, loggerID, modeName)
	return scanLoggerConfig(row)
}

func (s *Store) getLoggerConfigByName(q queryer, loggerID int64, name string) (*LoggerConfig, error) {
	row := q.QueryRow(`
		SELECT id, name, logger_id, spec, current_config, enabled
		FROM logger_config WHERE logger_id = ? AND name = ?`, loggerID, name)
	return scanLoggerConfig(row)
}

func (s *Store) getCurrentLoggerConfig(q queryer, loggerID int64) (*LoggerConfig, error) {
	row := q.QueryRow(`
		SELECT id, name, logger_id, spec, current_config, enabled
		FROM logger_config WHERE logger_id = ? AND current_config = 1`, loggerID)
	return scanLoggerConfig(row)
}

func (s *Store) listLoggerConfigNames(q queryer, loggerID int64) ([]string, error) {
	rows, err := q.Query(`SELECT name FROM logger_config WHERE logger_id = ? ORDER BY name`, loggerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) listCurrentLoggerConfigs(q queryer, modeName string) ([]LoggerConfig, error) {
	var rows *sql.Rows
	var err error
	if modeName == "" {
		rows, err = q.Query(`SELECT id, name, logger_id, spec, current_config, enabled FROM logger_config WHERE current_config = 1`)
	} else {
		rows, err = q.Query(`
			SELECT lc.id, lc.name, lc.logger_id, lc.spec, lc.current_config, lc.enabled
			FROM logger_config lc
			JOIN logger_config_mode lcm ON lcm.logger_config_id = lc.id
			JOIN mode m ON m.id = lcm.mode_id
			WHERE m.name = ?`, modeName)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LoggerConfig
	for rows.Next() {
		var lc LoggerConfig
		var current, enabled bool
		if err := rows.Scan(&lc.ID, &lc.Name, &lc.LoggerID, &lc.Spec, &current, &enabled); err != nil {
			return nil, err
		}
		lc.CurrentConfig, lc.Enabled = current, enabled
		out = append(out, lc)
	}
	return out, rows.Err()
}

func scanLoggerConfig(row *sql.Row) (*LoggerConfig, error) {
	var lc LoggerConfig
	var current, enabled bool
	if err := row.Scan(&lc.ID, &lc.Name, &lc.LoggerID, &lc.Spec, &current, &enabled); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	lc.CurrentConfig, lc.Enabled = current, enabled
	return &lc, nil
}

// --- LoggerConfigState ---

func (s *Store) latestState(q queryer, loggerID int64) (*LoggerConfigState, error) {
	row := q.QueryRow(`
		SELECT id, logger_id, timestamp, last_checked, running, failed, pid, errors
		FROM logger_config_state WHERE logger_id = ? ORDER BY id DESC LIMIT 1`, loggerID)
	var st LoggerConfigState
	var running, failed bool
	var errs sql.NullString
	if err := row.Scan(&st.ID, &st.LoggerID, &st.Timestamp, &st.LastChecked, &running, &failed, &st.PID, &errs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	st.Running, st.Failed, st.Errors = running, failed, errs.String
	return &st, nil
}

func (s *Store) insertState(tx *sql.Tx, st LoggerConfigState) error {
	_, err := tx.Exec(
		`INSERT INTO logger_config_state (logger_id, timestamp, last_checked, running, failed, pid, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.LoggerID, st.Timestamp, st.LastChecked, st.Running, st.Failed, st.PID, st.Errors,
	)
	return err
}

func (s *Store) touchLastChecked(tx *sql.Tx, stateID int64, lastChecked float64) error {
	_, err := tx.Exec(`UPDATE logger_config_state SET last_checked = ? WHERE id = ?`, lastChecked, stateID)
	return err
}

// --- LastUpdate ---

func (s *Store) setUpdateTime(tx *sql.Tx, t float64) error {
	_, err := tx.Exec(`INSERT INTO last_update (id, timestamp) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp`, t)
	return err
}

func (s *Store) lastUpdateTime(q queryer) (float64, error) {
	row := q.QueryRow(`SELECT timestamp FROM last_update WHERE id = 1`)
	var t float64
	if err := row.Scan(&t); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return t, nil
}

// --- LogMessage ---

func (s *Store) insertLogMessage(tx *sql.Tx, m LogMessage) error {
	_, err := tx.Exec(
		`INSERT INTO log_message (timestamp, source, user, log_level, cruise_id, message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.Timestamp, m.Source, m.User, m.LogLevel, m.CruiseID, m.Message,
	)
	return err
}

func (s *Store) queryLogMessages(q queryer, source, user, logLevel string, since float64) ([]LogMessage, error) {
	rows, err := q.Query(`
		SELECT id, timestamp, source, user, log_level, cruise_id, message
		FROM log_message
		WHERE timestamp >= ?
		  AND (? = '' OR source = ?)
		  AND (? = '' OR user = ?)
		  AND (? = '' OR log_level = ?)
		ORDER BY timestamp`,
		since, source, source, user, user, logLevel, logLevel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LogMessage
	for rows.Next() {
		var m LogMessage
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Source, &m.User, &m.LogLevel, &m.CruiseID, &m.Message); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either inside or outside a transaction without duplicating them.
type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
