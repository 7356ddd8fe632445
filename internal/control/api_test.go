package control

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewAPI(store, nil, nil)
}

func sampleSpec() ConfigurationSpec {
	return ConfigurationSpec{
		CruiseID:    "NBP2601",
		DefaultMode: "off",
		Loggers: map[string][]string{
			"gyro": {"gyro-on", "gyro-off"},
		},
		Modes: map[string]map[string]string{
			"underway": {"gyro": "gyro-on"},
			"off":      {"gyro": "gyro-off"},
		},
		ConfigSpecs: map[string]string{
			"gyro-on":  `{"reader1":{"Class":"logfile_reader"}}`,
			"gyro-off": `{}`,
		},
	}
}

func TestAPILoadConfigurationSetsDefaultMode(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)

	require.NoError(t, api.LoadConfiguration(ctx, sampleSpec()))

	mode, err := api.GetActiveMode(ctx)
	require.NoError(t, err)
	require.Equal(t, "off", mode)

	name, err := api.GetLoggerConfigName(ctx, "gyro", "")
	require.NoError(t, err)
	require.Equal(t, "gyro-off", name)
}

func TestAPISetActiveModeSwitchesLoggerConfig(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	require.NoError(t, api.LoadConfiguration(ctx, sampleSpec()))

	require.NoError(t, api.SetActiveMode(ctx, "underway"))

	mode, err := api.GetActiveMode(ctx)
	require.NoError(t, err)
	require.Equal(t, "underway", mode)

	name, err := api.GetLoggerConfigName(ctx, "gyro", "")
	require.NoError(t, err)
	require.Equal(t, "gyro-on", name)
}

func TestAPISetActiveModeRejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	require.NoError(t, api.LoadConfiguration(ctx, sampleSpec()))

	err := api.SetActiveMode(ctx, "nonexistent")
	require.Error(t, err)
}

func TestAPISetActiveModeFallsBackToOff(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)

	spec := sampleSpec()
	spec.Modes["underway"] = map[string]string{} // underway no longer assigns gyro
	require.NoError(t, api.LoadConfiguration(ctx, spec))

	require.NoError(t, api.SetActiveMode(ctx, "underway"))

	name, err := api.GetLoggerConfigName(ctx, "gyro", "")
	require.NoError(t, err)
	require.Equal(t, "gyro-off", name, "logger should fall back to the off config")
}

func TestAPIUpdateStatusShortCircuitsUnchangedState(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	require.NoError(t, api.LoadConfiguration(ctx, sampleSpec()))

	require.NoError(t, api.UpdateStatus(ctx, map[string]Status{
		"gyro": {Running: true, PID: 123},
	}))
	status, err := api.GetStatus(ctx, 0)
	require.NoError(t, err)
	first := status["gyro"]
	require.True(t, first.Running)
	require.Equal(t, 123, first.PID)

	// Re-reporting identical state should refresh last_checked only, not
	// append a new history row (no observable effect here besides the
	// call succeeding and the reported state staying the same).
	require.NoError(t, api.UpdateStatus(ctx, map[string]Status{
		"gyro": {Running: true, PID: 123},
	}))
	status, err = api.GetStatus(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, first.PID, status["gyro"].PID)
}

func TestAPISignalUpdateFiresOnMutation(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	sub := api.SignalUpdate()

	require.NoError(t, api.LoadConfiguration(ctx, sampleSpec()))

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("expected an update signal after LoadConfiguration")
	}
}

func TestAPIMessageLogRoundTrips(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	require.NoError(t, api.LoadConfiguration(ctx, sampleSpec()))
	require.NoError(t, api.MessageLog(ctx, "gyro", "operator", "info", "started"))

	msgs, err := api.GetMessageLog(ctx, "", "", "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "started", msgs[0].Message)
	require.Equal(t, "NBP2601", msgs[0].CruiseID)
}
