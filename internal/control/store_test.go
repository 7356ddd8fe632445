package control

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenCreatesSchema(t *testing.T) {
	store := newTestStore(t)
	c, err := store.getCruise(store.db)
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestStoreReplaceCruiseIsDestructive(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.tx(func(tx *sql.Tx) error {
		if err := store.replaceCruise(tx, Cruise{ID: "NBP2601", LoadedTime: 1.0}); err != nil {
			return err
		}
		_, err := store.createLogger(tx, "gyro")
		return err
	}))
	c, err := store.getCruise(store.db)
	require.NoError(t, err)
	require.Equal(t, "NBP2601", c.ID)

	require.NoError(t, store.tx(func(tx *sql.Tx) error {
		return store.replaceCruise(tx, Cruise{ID: "NBP2602", LoadedTime: 2.0})
	}))
	c, err = store.getCruise(store.db)
	require.NoError(t, err)
	require.Equal(t, "NBP2602", c.ID)

	loggers, err := store.listLoggers(store.db)
	require.NoError(t, err)
	require.Empty(t, loggers, "replaceCruise should cascade-delete prior loggers")
}

func TestStoreLoggerConfigCurrentFlag(t *testing.T) {
	store := newTestStore(t)
	var loggerID, cfgAID, cfgBID int64

	require.NoError(t, store.tx(func(tx *sql.Tx) error {
		var err error
		if err = store.replaceCruise(tx, Cruise{ID: "NBP2601", LoadedTime: 1.0}); err != nil {
			return err
		}
		if loggerID, err = store.createLogger(tx, "gyro"); err != nil {
			return err
		}
		if cfgAID, err = store.createLoggerConfig(tx, loggerID, "gyro-on", "{}", true); err != nil {
			return err
		}
		if cfgBID, err = store.createLoggerConfig(tx, loggerID, "gyro-off", "{}", true); err != nil {
			return err
		}
		return store.setCurrentConfig(tx, cfgAID, true)
	}))

	cur, err := store.getCurrentLoggerConfig(store.db, loggerID)
	require.NoError(t, err)
	require.Equal(t, cfgAID, cur.ID)

	require.NoError(t, store.tx(func(tx *sql.Tx) error {
		if err := store.clearCurrentConfig(tx, loggerID); err != nil {
			return err
		}
		return store.setCurrentConfig(tx, cfgBID, true)
	}))
	cur, err = store.getCurrentLoggerConfig(store.db, loggerID)
	require.NoError(t, err)
	require.Equal(t, cfgBID, cur.ID)
}

func TestStoreLastUpdateWatermarkAdvances(t *testing.T) {
	store := newTestStore(t)
	t0, err := store.lastUpdateTime(store.db)
	require.NoError(t, err)
	require.Zero(t, t0)

	require.NoError(t, store.tx(func(tx *sql.Tx) error {
		return store.setUpdateTime(tx, 42.5)
	}))
	t1, err := store.lastUpdateTime(store.db)
	require.NoError(t, err)
	require.Equal(t, 42.5, t1)

	require.NoError(t, store.tx(func(tx *sql.Tx) error {
		return store.setUpdateTime(tx, 99.0)
	}))
	t2, err := store.lastUpdateTime(store.db)
	require.NoError(t, err)
	require.Equal(t, 99.0, t2)
}

func TestStoreLogMessageFiltering(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.tx(func(tx *sql.Tx) error {
		if err := store.insertLogMessage(tx, LogMessage{Timestamp: 1, Source: "gyro", LogLevel: "info", Message: "hello"}); err != nil {
			return err
		}
		return store.insertLogMessage(tx, LogMessage{Timestamp: 2, Source: "gps", LogLevel: "error", Message: "bad fix"})
	}))

	msgs, err := store.queryLogMessages(store.db, "gyro", "", "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Message)

	msgs, err = store.queryLogMessages(store.db, "", "", "error", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "bad fix", msgs[0].Message)
}
