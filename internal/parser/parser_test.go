package parser

import (
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/internal/devices"
)

func TestParseDefaultEnvelopeExtractsDataIDAndTimestamp(t *testing.T) {
	p, err := New(Config{
		FieldPatterns: []FieldPattern{
			{Regex: mustCompile(t, `^(?P<temp>[\d.]+),(?P<hum>[\d.]+)$`)},
		},
	})
	require.NoError(t, err)

	rec := p.Parse("sensor1 2023-01-01T00:00:10.000Z 23.5,48.1")
	require.NotNil(t, rec)
	assert.Equal(t, "sensor1", rec.DataID)
	assert.InDelta(t, 1672531210.0, rec.Timestamp, 1e-3)
	assert.Equal(t, "23.5", rec.Fields["temp"])
	assert.Equal(t, "48.1", rec.Fields["hum"])
}

func TestParseWithoutEnvelopeFieldsStillParses(t *testing.T) {
	p, err := New(Config{
		FieldPatterns: []FieldPattern{
			{Regex: mustCompile(t, `^(?P<x>\d+)$`)},
		},
		Quiet: true,
	})
	require.NoError(t, err)

	rec := p.Parse("42")
	require.NotNil(t, rec)
	assert.Equal(t, "unknown", rec.DataID)
	assert.Equal(t, "42", rec.Fields["x"])
}

func TestParseNoFieldMatchReturnsNil(t *testing.T) {
	p, err := New(Config{
		FieldPatterns: []FieldPattern{{Regex: mustCompile(t, `^nomatch$`)}},
		Quiet:         true,
	})
	require.NoError(t, err)
	assert.Nil(t, p.Parse("sensor1 2023-01-01T00:00:10.000Z something-else"))
}

func TestParseEmptyRecordReturnsNil(t *testing.T) {
	p, err := New(Config{Quiet: true})
	require.NoError(t, err)
	assert.Nil(t, p.Parse(""))
}

func TestParseDeviceDrivenConvertAndRename(t *testing.T) {
	reg := devices.NewRegistry(logrus.New())
	dir := t.TempDir()
	path := dir + "/devices.yaml"
	writeFile(t, path, `
device_types:
  sensor_type_A:
    format:
      temp_msg: '^(?P<raw_temp>[\d.]+),(?P<raw_hum>[\d.]+)$'
    fields:
      raw_temp: float
      raw_hum: float
devices:
  sensor1:
    device_type: sensor_type_A
    fields:
      raw_temp: temperature
      raw_hum: humidity
`)
	require.NoError(t, reg.Load([]string{path}))

	p, err := New(Config{Registry: reg, Quiet: true})
	require.NoError(t, err)

	rec := p.Parse("sensor1 2023-01-01T00:00:10.000Z 23.5,48.1")
	require.NotNil(t, rec)
	assert.Equal(t, "sensor1", rec.DataID)
	assert.Equal(t, "temp_msg", rec.MessageType)
	assert.InDelta(t, 23.5, rec.Fields["temperature"].(float64), 1e-9)
	assert.InDelta(t, 48.1, rec.Fields["humidity"].(float64), 1e-9)
	_, hasRaw := rec.Fields["raw_temp"]
	assert.False(t, hasRaw)
}

func TestParseMetadataInjectionRespectsInterval(t *testing.T) {
	reg := devices.NewRegistry(logrus.New())
	dir := t.TempDir()
	path := dir + "/devices.yaml"
	writeFile(t, path, `
device_types:
  sensor_type_A:
    format:
      temp_msg: '^(?P<raw_temp>[\d.]+)$'
    fields:
      raw_temp:
        type: float
        units: celsius
devices:
  sensor1:
    device_type: sensor_type_A
    fields:
      raw_temp: temperature
`)
	require.NoError(t, reg.Load([]string{path}))

	p, err := New(Config{Registry: reg, Quiet: true, MetadataInterval: time.Second})
	require.NoError(t, err)

	rec1 := p.Parse("sensor1 2023-01-01T00:00:10.000Z 23.5")
	require.NotNil(t, rec1)
	require.Contains(t, rec1.Metadata, "temperature")
	assert.Equal(t, "celsius", rec1.Metadata["temperature"]["units"])

	rec2 := p.Parse("sensor1 2023-01-01T00:00:10.500Z 24.0")
	require.NotNil(t, rec2)
	assert.NotContains(t, rec2.Metadata, "temperature")

	rec3 := p.Parse("sensor1 2023-01-01T00:00:12.000Z 24.5")
	require.NotNil(t, rec3)
	assert.Contains(t, rec3.Metadata, "temperature")
}

func mustCompile(t *testing.T, pattern string) *regexp.Regexp {
	t.Helper()
	re, err := regexp.Compile(pattern)
	require.NoError(t, err)
	return re
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
