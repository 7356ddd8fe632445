package control

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rvdas-go/internal/metrics"
	"rvdas-go/internal/tracing"
	apperrors "rvdas-go/pkg/errors"
)

// API is spec.md §4.7's ControlAPI: the sole reader/mutator interface over
// a Store, serializing every mutating call through configLock, caching
// read-heavy queries against the store's update watermark, and fanning
// out update/load notifications to subscribers.
type API struct {
	store  *Store
	lock   configLock
	logger *logrus.Logger
	tracer *tracing.Provider

	activeModeCache    watermarkCache
	loggerConfigsCache watermarkCache
	statusCache        watermarkCache

	subMu      sync.Mutex
	updateSubs []chan struct{}
	loadSubs   []chan struct{}
}

// NewAPI constructs an API over an already-open Store. Per SPEC_FULL.md's
// Open Question decision, there is no package-level singleton: callers
// (internal/app) own construction and lifetime.
func NewAPI(store *Store, logger *logrus.Logger, tracer *tracing.Provider) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &API{store: store, logger: logger, tracer: tracer}
}

// --- Readers ---

// GetConfiguration returns the currently loaded cruise, or nil if none is
// loaded.
func (a *API) GetConfiguration(ctx context.Context) (*Cruise, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.store.getCruise(a.store.db)
}

// GetModes returns every mode name defined by the current cruise.
func (a *API) GetModes(ctx context.Context) ([]string, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	modes, err := a.store.listModes(a.store.db)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Name
	}
	return names, nil
}

// GetActiveMode returns the cruise's current mode, cached against the
// update watermark per spec.md §4.7's cache discipline.
func (a *API) GetActiveMode(ctx context.Context) (string, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	t, err := a.store.lastUpdateTime(a.store.db)
	if err != nil {
		return "", err
	}
	v, err := a.activeModeCache.get(t, func() (interface{}, error) {
		c, err := a.store.getCruise(a.store.db)
		if err != nil || c == nil {
			return "", err
		}
		return c.ActiveMode, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetDefaultMode returns the cruise's configured default mode.
func (a *API) GetDefaultMode(ctx context.Context) (string, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	c, err := a.store.getCruise(a.store.db)
	if err != nil || c == nil {
		return "", err
	}
	return c.DefaultMode, nil
}

// GetLoggers returns every logger defined by the current cruise.
func (a *API) GetLoggers(ctx context.Context) ([]Logger, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.store.listLoggers(a.store.db)
}

// GetLogger returns one named logger.
func (a *API) GetLogger(ctx context.Context, name string) (*Logger, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.store.getLoggerByName(a.store.db, name)
}

// GetLoggerConfig returns one named logger's one named config.
func (a *API) GetLoggerConfig(ctx context.Context, loggerName, configName string) (*LoggerConfig, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	logger, err := a.store.getLoggerByName(a.store.db, loggerName)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, apperrors.ConfigError("control", fmt.Sprintf("unknown logger %q", loggerName))
	}
	return a.store.getLoggerConfigByName(a.store.db, logger.ID, configName)
}

// GetLoggerConfigs returns every logger's currently-assigned config when
// mode is empty, or every config associated with mode otherwise. The
// empty-mode result is cached against the update watermark; a per-mode
// lookup always reads the store.
func (a *API) GetLoggerConfigs(ctx context.Context, mode string) ([]LoggerConfig, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if mode != "" {
		return a.store.listCurrentLoggerConfigs(a.store.db, mode)
	}
	t, err := a.store.lastUpdateTime(a.store.db)
	if err != nil {
		return nil, err
	}
	v, err := a.loggerConfigsCache.get(t, func() (interface{}, error) {
		return a.store.listCurrentLoggerConfigs(a.store.db, mode)
	})
	if err != nil {
		return nil, err
	}
	return v.([]LoggerConfig), nil
}

// GetLoggerConfigName returns the name of the config assigned to logger
// under mode (or its current config, if mode is empty).
func (a *API) GetLoggerConfigName(ctx context.Context, loggerName, mode string) (string, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	logger, err := a.store.getLoggerByName(a.store.db, loggerName)
	if err != nil || logger == nil {
		return "", err
	}
	var lc *LoggerConfig
	if mode == "" {
		lc, err = a.store.getCurrentLoggerConfig(a.store.db, logger.ID)
	} else {
		lc, err = a.store.getLoggerConfigForMode(a.store.db, logger.ID, mode)
	}
	if err != nil || lc == nil {
		return "", err
	}
	return lc.Name, nil
}

// GetLoggerConfigNames returns every config name defined for logger.
func (a *API) GetLoggerConfigNames(ctx context.Context, loggerName string) ([]string, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	logger, err := a.store.getLoggerByName(a.store.db, loggerName)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, apperrors.ConfigError("control", fmt.Sprintf("unknown logger %q", loggerName))
	}
	return a.store.listLoggerConfigNames(a.store.db, logger.ID)
}

// GetStatus returns the latest observed state of every logger whose state
// has changed since sinceTimestamp (0 for "all"), cached against the
// update watermark.
func (a *API) GetStatus(ctx context.Context, sinceTimestamp float64) (map[string]LoggerConfigState, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	t, err := a.store.lastUpdateTime(a.store.db)
	if err != nil {
		return nil, err
	}
	v, err := a.statusCache.get(t, func() (interface{}, error) {
		loggers, err := a.store.listLoggers(a.store.db)
		if err != nil {
			return nil, err
		}
		out := make(map[string]LoggerConfigState, len(loggers))
		for _, l := range loggers {
			st, err := a.store.latestState(a.store.db, l.ID)
			if err != nil {
				return nil, err
			}
			if st != nil {
				out[l.Name] = *st
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	all := v.(map[string]LoggerConfigState)
	if sinceTimestamp <= 0 {
		return all, nil
	}
	out := make(map[string]LoggerConfigState, len(all))
	for name, st := range all {
		if st.Timestamp >= sinceTimestamp {
			out[name] = st
		}
	}
	return out, nil
}

// GetMessageLog returns operational log messages matching the given
// filters (empty string/zero value means "don't filter on this field").
func (a *API) GetMessageLog(ctx context.Context, source, user, logLevel string, sinceTimestamp float64) ([]LogMessage, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.store.queryLogMessages(a.store.db, source, user, logLevel, sinceTimestamp)
}

// --- Mutators ---

// withMutation wraps a mutating transaction with configLock, metrics, and
// tracing, per SPEC_FULL.md's ambient-stack instructions for ControlAPI
// mutating transactions.
func (a *API) withMutation(ctx context.Context, operation string, fn func(*sql.Tx) error) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	start := time.Now()
	var span *tracing.Span
	if a.tracer != nil {
		_, span = a.tracer.StartSpan(ctx, "control."+operation)
		defer span.End()
	}

	txErr := a.store.tx(fn)

	outcome := "ok"
	if txErr != nil {
		outcome = "error"
		if span != nil {
			span.SetError(txErr)
		}
	}
	metrics.RecordControlMutation(operation, outcome, time.Since(start))

	if txErr != nil {
		a.logger.WithError(txErr).WithField("operation", operation).Warn("control mutation failed")
	}
	return txErr
}

// LoadConfiguration replaces the active cruise wholesale per spec.md
// §4.7's load_configuration transaction: validate (already done by
// internal/config.LoadCruiseDefinition before this is called) -> delete
// prior cruise, cascading -> create Cruise/Modes/Loggers/LoggerConfigs ->
// advance the update watermark -> signal_load().
func (a *API) LoadConfiguration(ctx context.Context, spec ConfigurationSpec) error {
	err := a.withMutation(ctx, "load_configuration", func(tx *sql.Tx) error {
		return a.loadConfigurationTx(tx, spec)
	})
	if err != nil {
		return err
	}
	a.signalLoad()
	a.signalUpdate()
	return nil
}

// loadConfigurationTx performs spec.md §4.7's load_configuration body:
// replace the Cruise row, create every Mode, create every Logger with
// every config it may assume, associate each LoggerConfig with the modes
// that assign it, and point each Logger at its default-mode config (if
// the default mode assigns it one).
func (a *API) loadConfigurationTx(tx *sql.Tx, spec ConfigurationSpec) error {
	if err := a.store.replaceCruise(tx, Cruise{
		ID:             spec.CruiseID,
		Start:          spec.Start,
		End:            spec.End,
		ConfigFilename: spec.ConfigFilename,
		LoadedTime:     now(),
		DefaultMode:    spec.DefaultMode,
	}); err != nil {
		return err
	}

	modeIDs := make(map[string]int64, len(spec.Modes))
	for modeName := range spec.Modes {
		id, err := a.store.createMode(tx, modeName)
		if err != nil {
			return err
		}
		modeIDs[modeName] = id
	}

	loggerIDs := make(map[string]int64, len(spec.Loggers))
	configIDs := make(map[string]map[string]int64, len(spec.Loggers)) // logger -> config name -> id
	for loggerName, configNames := range spec.Loggers {
		loggerID, err := a.store.createLogger(tx, loggerName)
		if err != nil {
			return err
		}
		loggerIDs[loggerName] = loggerID
		configIDs[loggerName] = map[string]int64{}

		for _, configName := range configNames {
			configSpec, ok := spec.ConfigSpecs[configName]
			if !ok {
				return apperrors.ConfigError("load_configuration",
					fmt.Sprintf("logger %q assigns undefined config %q", loggerName, configName))
			}
			lcID, err := a.store.createLoggerConfig(tx, loggerID, configName, configSpec, true)
			if err != nil {
				return err
			}
			configIDs[loggerName][configName] = lcID
		}
	}

	for modeName, assignments := range spec.Modes {
		for loggerName, configName := range assignments {
			lcID, ok := configIDs[loggerName][configName]
			if !ok {
				return apperrors.ConfigError("load_configuration",
					fmt.Sprintf("mode %q assigns logger %q an undefined config %q", modeName, loggerName, configName))
			}
			if err := a.store.addLoggerConfigMode(tx, lcID, modeIDs[modeName]); err != nil {
				return err
			}
		}
	}

	if spec.DefaultMode != "" {
		for loggerName, configName := range spec.Modes[spec.DefaultMode] {
			lcID := configIDs[loggerName][configName]
			if err := a.store.setCurrentConfig(tx, lcID, true); err != nil {
				return err
			}
			if err := a.store.setLoggerConfig(tx, loggerIDs[loggerName], &lcID); err != nil {
				return err
			}
		}
		if err := a.store.setActiveMode(tx, spec.DefaultMode); err != nil {
			return err
		}
	}

	return a.store.setUpdateTime(tx, now())
}

// DeleteConfiguration tears down the active cruise without loading a
// replacement.
func (a *API) DeleteConfiguration(ctx context.Context) error {
	err := a.withMutation(ctx, "delete_configuration", func(tx *sql.Tx) error {
		if err := a.store.replaceCruise(tx, Cruise{}); err != nil {
			return err
		}
		return a.store.setUpdateTime(tx, now())
	})
	if err != nil {
		return err
	}
	a.signalUpdate()
	return nil
}

// SetActiveMode implements spec.md §4.7's mode-switch transaction:
// resolve the mode, repoint every logger at the (logger,mode) config
// (falling back to (logger,"off"), skipping with a warning if neither
// exists), append a fresh LoggerConfigState for each repointed logger,
// advance the cruise's active_mode and the update watermark, signal_update.
func (a *API) SetActiveMode(ctx context.Context, mode string) error {
	err := a.withMutation(ctx, "set_active_mode", func(tx *sql.Tx) error {
		return a.setActiveModeTx(tx, mode)
	})
	if err != nil {
		return err
	}
	a.signalUpdate()
	return nil
}

func (a *API) setActiveModeTx(tx *sql.Tx, mode string) error {
	m, err := a.store.getModeByName(tx, mode)
	if err != nil {
		return err
	}
	if m == nil {
		return apperrors.ConfigError("control", fmt.Sprintf("unknown mode %q", mode))
	}

	loggers, err := a.store.listLoggers(tx)
	if err != nil {
		return err
	}
	for _, l := range loggers {
		if err := a.store.clearCurrentConfig(tx, l.ID); err != nil {
			return err
		}

		lc, err := a.store.getLoggerConfigForMode(tx, l.ID, mode)
		if err != nil {
			return err
		}
		if lc == nil {
			lc, err = a.store.getLoggerConfigForMode(tx, l.ID, "off")
			if err != nil {
				return err
			}
		}
		if lc == nil {
			a.logger.WithFields(logrus.Fields{"logger": l.Name, "mode": mode}).
				Warn("no logger config for mode or off fallback; leaving logger unassigned")
			if err := a.store.setLoggerConfig(tx, l.ID, nil); err != nil {
				return err
			}
			continue
		}

		if err := a.store.setCurrentConfig(tx, lc.ID, true); err != nil {
			return err
		}
		if err := a.store.setLoggerConfig(tx, l.ID, &lc.ID); err != nil {
			return err
		}
		if err := a.store.insertState(tx, LoggerConfigState{
			LoggerID:    l.ID,
			Timestamp:   now(),
			LastChecked: now(),
			Running:     false,
			Failed:      false,
			PID:         0,
		}); err != nil {
			return err
		}
	}

	if err := a.store.setActiveMode(tx, mode); err != nil {
		return err
	}
	return a.store.setUpdateTime(tx, now())
}

// SetActiveLoggerConfig assigns logger directly to configName, outside of
// a mode switch (spec.md §4.7's set_active_logger_config).
func (a *API) SetActiveLoggerConfig(ctx context.Context, loggerName, configName string) error {
	err := a.withMutation(ctx, "set_active_logger_config", func(tx *sql.Tx) error {
		logger, err := a.store.getLoggerByName(tx, loggerName)
		if err != nil {
			return err
		}
		if logger == nil {
			return apperrors.ConfigError("control", fmt.Sprintf("unknown logger %q", loggerName))
		}
		lc, err := a.store.getLoggerConfigByName(tx, logger.ID, configName)
		if err != nil {
			return err
		}
		if lc == nil {
			return apperrors.ConfigError("control", fmt.Sprintf("unknown config %q for logger %q", configName, loggerName))
		}
		if err := a.store.clearCurrentConfig(tx, logger.ID); err != nil {
			return err
		}
		if err := a.store.setCurrentConfig(tx, lc.ID, true); err != nil {
			return err
		}
		if err := a.store.setLoggerConfig(tx, logger.ID, &lc.ID); err != nil {
			return err
		}
		if err := a.store.insertState(tx, LoggerConfigState{
			LoggerID:    logger.ID,
			Timestamp:   now(),
			LastChecked: now(),
		}); err != nil {
			return err
		}
		return a.store.setUpdateTime(tx, now())
	})
	if err != nil {
		return err
	}
	a.signalUpdate()
	return nil
}

// UpdateStatus applies a batch of observed logger states per spec.md
// §4.7: append a new LoggerConfigState row only when running/failed/pid
// changed or new errors were reported; otherwise just refresh
// last_checked on the latest row. If nothing in the batch changed, the
// update watermark is not advanced and no update signal is sent.
func (a *API) UpdateStatus(ctx context.Context, status map[string]Status) error {
	changed := false
	err := a.withMutation(ctx, "update_status", func(tx *sql.Tx) error {
		for loggerName, st := range status {
			logger, err := a.store.getLoggerByName(tx, loggerName)
			if err != nil {
				return err
			}
			if logger == nil {
				continue
			}

			prev, err := a.store.latestState(tx, logger.ID)
			if err != nil {
				return err
			}

			errs := joinErrors(st.Errors)
			t := now()
			if prev == nil || prev.Running != st.Running || prev.Failed != st.Failed || prev.PID != st.PID || errs != "" {
				if err := a.store.insertState(tx, LoggerConfigState{
					LoggerID:    logger.ID,
					Timestamp:   t,
					LastChecked: t,
					Running:     st.Running,
					Failed:      st.Failed,
					PID:         st.PID,
					Errors:      errs,
				}); err != nil {
					return err
				}
				changed = true
			} else if err := a.store.touchLastChecked(tx, prev.ID, t); err != nil {
				return err
			}
		}
		if !changed {
			return nil
		}
		return a.store.setUpdateTime(tx, now())
	})
	if err != nil {
		return err
	}
	if changed {
		a.signalUpdate()
	}
	return nil
}

// MessageLog appends one operational log message.
func (a *API) MessageLog(ctx context.Context, source, user, logLevel, message string) error {
	return a.withMutation(ctx, "message_log", func(tx *sql.Tx) error {
		cruise, err := a.store.getCruise(tx)
		if err != nil {
			return err
		}
		cruiseID := ""
		if cruise != nil {
			cruiseID = cruise.ID
		}
		return a.store.insertLogMessage(tx, LogMessage{
			Timestamp: now(),
			Source:    source,
			User:      user,
			LogLevel:  logLevel,
			CruiseID:  cruiseID,
			Message:   message,
		})
	})
}

// --- Subscription ---

// SignalUpdate returns a channel that receives a value every time any
// mutator advances the update watermark.
func (a *API) SignalUpdate() <-chan struct{} {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	ch := make(chan struct{}, 1)
	a.updateSubs = append(a.updateSubs, ch)
	return ch
}

// SignalLoad returns a channel that receives a value every time
// LoadConfiguration replaces the active cruise.
func (a *API) SignalLoad() <-chan struct{} {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	ch := make(chan struct{}, 1)
	a.loadSubs = append(a.loadSubs, ch)
	return ch
}

func (a *API) signalUpdate() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.updateSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (a *API) signalLoad() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.loadSubs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}
