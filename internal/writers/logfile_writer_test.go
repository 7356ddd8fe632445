package writers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/record"
)

func TestLogfileWriterSingleFilebaseAppendsSuffixAndDate(t *testing.T) {
	dir := t.TempDir()
	lw, err := NewLogfileWriter(LogfileWriterConfig{
		Filebase:    filepath.Join(dir, "GYRO-"),
		Suffix:      ".txt",
		SplitAmount: 24,
		SplitUnit:   SplitHours,
		Flush:       true,
	})
	require.NoError(t, err)
	defer lw.Close()

	require.NoError(t, lw.Write(record.New(1700000000, map[string]record.Value{"text": "$HEHDT,123.4,T"})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "GYRO-")
	assert.True(t, filepath.Ext(entries[0].Name()) == ".txt")
}

func TestLogfileWriterRoutesByPattern(t *testing.T) {
	dir := t.TempDir()
	lw, err := NewLogfileWriter(LogfileWriterConfig{
		Patterns: map[string]string{
			"GPGGA": filepath.Join(dir, "gps-"),
			"HEHDT": filepath.Join(dir, "gyro-"),
		},
		Suffix: ".txt",
		Flush:  true,
		Quiet:  true,
	})
	require.NoError(t, err)
	defer lw.Close()

	require.NoError(t, lw.Write(record.New(1700000000, map[string]record.Value{"text": "$GPGGA,sample"})))
	require.NoError(t, lw.Write(record.New(1700000000, map[string]record.Value{"text": "$HEHDT,sample"})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLogfileWriterNoMatchWarnsButDoesNotError(t *testing.T) {
	dir := t.TempDir()
	lw, err := NewLogfileWriter(LogfileWriterConfig{
		Patterns: map[string]string{"GPGGA": filepath.Join(dir, "gps-")},
		Suffix:   ".txt",
	})
	require.NoError(t, err)
	defer lw.Close()

	require.NoError(t, lw.Write(record.New(1.0, map[string]record.Value{"text": "no match here"})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}
