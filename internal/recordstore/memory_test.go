package recordstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/record"
)

func TestWriteRecordCreatesTableAndInfersSchema(t *testing.T) {
	m := NewMemory()
	rec := record.New(1.0, map[string]record.Value{"temp": 19.5, "name": "bow"})

	require.NoError(t, m.WriteRecord("sensor1", rec))
	assert.True(t, m.TableExists("sensor1"))

	rows, err := m.Read("sensor1", nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 19.5, rows[0].Fields["temp"])
}

func TestWriteRecordAltersSchemaForNewColumn(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.WriteRecord("sensor1", record.New(1.0, map[string]record.Value{"temp": 1.0})))
	require.NoError(t, m.WriteRecord("sensor1", record.New(2.0, map[string]record.Value{"temp": 2.0, "humidity": 55.0})))

	rows, err := m.Read("sensor1", nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Fields["humidity"])
	assert.Equal(t, 55.0, rows[1].Fields["humidity"])
}

func TestReadRangeIsHalfOpen(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.WriteRecord("t", record.New(float64(i), map[string]record.Value{"i": i})))
	}

	rows, err := m.ReadRange("t", nil, 1, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Fields["i"])
	assert.Equal(t, 2, rows[1].Fields["i"])
}

func TestReadTimeRangeIsHalfOpen(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.WriteRecord("t", record.New(float64(i), map[string]record.Value{"i": i})))
	}

	rows, err := m.ReadTimeRange("t", nil, 1.0, 3.0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestSeekRepositionsCursor(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 3; i++ {
		require.NoError(t, m.WriteRecord("t", record.New(float64(i), map[string]record.Value{"i": i})))
	}

	pos, err := m.Seek("t", -1, SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestFieldProjectionOnlyReturnsRequestedFields(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.WriteRecord("t", record.New(1.0, map[string]record.Value{"a": 1, "b": 2})))

	rows, err := m.Read("t", []string{"a"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Fields, "a")
	assert.NotContains(t, rows[0].Fields, "b")
}

func TestDeleteTableRemovesIt(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.WriteRecord("t", record.New(1.0, map[string]record.Value{"a": 1})))
	require.NoError(t, m.DeleteTable("t"))
	assert.False(t, m.TableExists("t"))
}
