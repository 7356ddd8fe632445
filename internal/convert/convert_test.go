package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/record"
)

func TestFieldsConvertsSimpleTypes(t *testing.T) {
	fields := map[string]record.Value{
		"temp":  "23.5",
		"count": "123.0",
		"label": "sensor",
	}
	specs := map[string]FieldSpec{
		"temp":  {DataType: "float"},
		"count": {DataType: "int"},
		"label": {DataType: "str"},
	}
	out := Fields(fields, specs, nil, false, false, true)
	require.NotNil(t, out)
	assert.InDelta(t, 23.5, out["temp"].(float64), 1e-9)
	assert.Equal(t, int64(123), out["count"])
	assert.Equal(t, "sensor", out["label"])
}

func TestFieldsUnknownTypeLeavesValueUnchanged(t *testing.T) {
	fields := map[string]record.Value{"x": "abc"}
	specs := map[string]FieldSpec{"x": {DataType: "not_a_type"}}
	out := Fields(fields, specs, nil, false, false, true)
	assert.Equal(t, "abc", out["x"])
}

func TestFieldsLatLonComposition(t *testing.T) {
	fields := map[string]record.Value{
		"lat_value": "4807.038",
		"lat_dir":   "S",
	}
	latLon := map[string]LatLonSpec{
		"latitude": {ValueField: "lat_value", DirField: "lat_dir"},
	}
	out := Fields(fields, nil, latLon, true, false, true)
	require.NotNil(t, out)
	assert.InDelta(t, -48.1173, out["latitude"].(float64), 1e-4)
	_, hasValue := out["lat_value"]
	_, hasDir := out["lat_dir"]
	assert.False(t, hasValue)
	assert.False(t, hasDir)
}

func TestFieldsDeleteUnconvertedFields(t *testing.T) {
	fields := map[string]record.Value{
		"temp":  "23.5",
		"extra": "keep-me-out",
	}
	specs := map[string]FieldSpec{"temp": {DataType: "float"}}
	out := Fields(fields, specs, nil, false, true, true)
	require.NotNil(t, out)
	_, hasExtra := out["extra"]
	assert.False(t, hasExtra)
}

func TestFieldsReturnsNilWhenNothingSurvives(t *testing.T) {
	fields := map[string]record.Value{"extra": "x"}
	out := Fields(fields, nil, nil, false, true, true)
	assert.Nil(t, out)
}

func TestLatLonNorthEastPositive(t *testing.T) {
	deg, ok := LatLon("4807.038", "N")
	require.True(t, ok)
	assert.InDelta(t, 48.1173, deg, 1e-4)
}

func TestToHexIntAcceptsPrefixedAndBare(t *testing.T) {
	for _, s := range []string{"1A", "0x1A", "0X1a"} {
		v, err := toHexInt(s)
		require.NoError(t, err)
		assert.Equal(t, int64(26), v)
	}
}
