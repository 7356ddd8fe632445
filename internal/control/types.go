// Package control implements the supervisory control plane of spec.md
// §3/§4.7: ControlStore, the transactional sqlite-backed store of
// Cruise/Mode/Logger/LoggerConfig/LoggerConfigState/LastUpdate/
// LogMessage, and ControlAPI, the sole reader/mutator interface over it
// with a cache layer, an update-notification signal, and the mode-switch
// transaction that atomically repoints every logger to a new
// configuration.
package control

// Cruise is the single active cruise (spec.md §3): at most one is ever
// held, and loading a new one destructively replaces it.
type Cruise struct {
	ID             string
	Start          string
	End            string
	ConfigFilename string
	LoadedTime     float64
	ActiveMode     string
	DefaultMode    string
}

// Mode is a named bundle of per-logger configurations.
type Mode struct {
	ID   int64
	Name string
}

// Logger is one data-acquisition source under the active cruise. ConfigID
// is nullable: a logger need not yet have a config assigned.
type Logger struct {
	ID       int64
	Name     string
	ConfigID *int64
}

// LoggerConfig is one named, serialized pipeline spec a Logger may run
// under. Invariant (maintained by the API's mutating calls, not by the
// store's schema): at most one LoggerConfig per
// logger has CurrentConfig = true; for every (logger, mode) at most one
// LoggerConfig is associated with both.
type LoggerConfig struct {
	ID            int64
	Name          string
	LoggerID      int64
	Spec          string // serialized (JSON) pipeline spec
	Modes         []string
	CurrentConfig bool
	Enabled       bool
}

// LoggerConfigState is one observed-state snapshot for a logger. History
// is append-only; the latest row per logger is authoritative.
type LoggerConfigState struct {
	ID          int64
	LoggerID    int64
	Timestamp   float64
	LastChecked float64
	Running     bool
	Failed      bool
	PID         int
	Errors      string
}

// LogMessage is one entry in the operational log.
type LogMessage struct {
	ID        int64
	Timestamp float64
	Source    string
	User      string
	LogLevel  string
	CruiseID  string
	Message   string
}

// Status is one logger's reported run-state, as passed to
// API.UpdateStatus (spec.md §4.7's "status is a mapping from logger_id to
// {config, errors, pid, failed, running}").
type Status struct {
	Config  string
	Errors  []string
	PID     int
	Failed  bool
	Running bool
}

// ConfigurationSpec is the validated, in-memory form of a cruise
// definition file's loggers/modes/configs/default_mode, as produced by
// FromCruiseDefinition (from internal/config.LoadCruiseDefinition's
// result) and consumed by
// API.LoadConfiguration. Pipeline specs are carried as opaque serialized
// JSON here -- ControlStore only stores and retrieves them, it never
// interprets their contents.
type ConfigurationSpec struct {
	CruiseID       string
	Start          string
	End            string
	ConfigFilename string
	DefaultMode    string
	// Loggers maps logger name -> the names of configs it may assume.
	Loggers map[string][]string
	// Modes maps mode name -> (logger name -> config name).
	Modes map[string]map[string]string
	// ConfigSpecs maps config name -> its serialized (JSON) pipeline spec.
	ConfigSpecs map[string]string
}
