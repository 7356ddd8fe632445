package devices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLookupResolvesSensor1FromDefinitionFile(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "sensor1.yaml", `
device_types:
  sensor_type_A:
    format:
      temp_msg: '^(?P<raw_temp>[\d.]+),(?P<raw_hum>[\d.]+)$'
    fields:
      raw_temp:
        type: float
        units: celsius
      raw_hum:
        type: float
        units: percent

devices:
  sensor1:
    device_type: sensor_type_A
    fields:
      raw_temp: temperature
      raw_hum: humidity
`)

	reg := NewRegistry(logrus.New())
	require.NoError(t, reg.Load([]string{dir + "/*.yaml"}))

	lookup, ok := reg.Lookup("sensor1")
	require.True(t, ok)

	assert.Equal(t, "sensor_type_A", lookup.DeviceTypeName)
	assert.Equal(t, "temperature", lookup.Rename["raw_temp"])
	assert.Equal(t, "humidity", lookup.Rename["raw_hum"])
	assert.Equal(t, "float", lookup.Fields["raw_temp"])
	assert.Equal(t, "celsius", lookup.FieldMetadata["raw_temp"]["units"])
	require.Len(t, lookup.Patterns, 1)
	assert.Equal(t, "temp_msg", lookup.Patterns[0].MessageType)
	assert.True(t, lookup.Patterns[0].Regex.MatchString("23.5,48.1"))
}

func TestLookupUnknownDataIDReturnsFalse(t *testing.T) {
	reg := NewRegistry(logrus.New())
	_, ok := reg.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestLoadDuplicateDeviceLastDefinitionWins(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "a.yaml", `
device_types:
  typeA:
    fields:
      x: float
devices:
  dup:
    device_type: typeA
    fields:
      x: first_name
`)
	writeTempFile(t, dir, "b.yaml", `
devices:
  dup:
    device_type: typeA
    fields:
      x: second_name
`)

	reg := NewRegistry(logrus.New())
	require.NoError(t, reg.Load([]string{dir + "/a.yaml", dir + "/b.yaml"}))

	lookup, ok := reg.Lookup("dup")
	require.True(t, ok)
	assert.Equal(t, "second_name", lookup.Rename["x"])
}

func TestLoadIncludesAreMerged(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "base.yaml", `
device_types:
  typeA:
    fields:
      x: float
`)
	writeTempFile(t, dir, "main.yaml", `
includes: base.yaml
devices:
  sensor1:
    device_type: typeA
    fields:
      x: value
`)

	reg := NewRegistry(logrus.New())
	require.NoError(t, reg.Load([]string{filepath.Join(dir, "main.yaml")}))

	_, hasType := reg.DeviceTypes()["typeA"]
	assert.True(t, hasType)

	lookup, ok := reg.Lookup("sensor1")
	require.True(t, ok)
	assert.Equal(t, "float", lookup.Fields["x"])
	assert.Equal(t, "value", lookup.Rename["x"])
}

func TestLoadRejectsNonMappingDevices(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "bad.yaml", `
devices: "not-a-mapping"
`)
	reg := NewRegistry(logrus.New())
	err := reg.Load([]string{filepath.Join(dir, "bad.yaml")})
	require.Error(t, err)
}
