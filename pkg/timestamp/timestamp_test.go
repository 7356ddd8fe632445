package timestamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601Epoch(t *testing.T) {
	got, err := ParseISO8601("1970-01-01T00:00:10.0Z")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got, 1e-9)
}

func TestParseISO8601NoFraction(t *testing.T) {
	got, err := ParseISO8601("1970-01-01T00:00:10Z")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got, 1e-9)
}

func TestFormatISO8601RoundTrip(t *testing.T) {
	s := FormatISO8601(1672531200)
	got, err := ParseISO8601(s)
	require.NoError(t, err)
	assert.InDelta(t, 1672531200.0, got, 1e-3)
}

func TestJulianDayRoundTrip(t *testing.T) {
	ts := 1672531200.0
	jd := ToJulianDay(ts)
	assert.InDelta(t, ts, FromJulianDay(jd), 1e-6)
}

func TestParseEpoch(t *testing.T) {
	got, err := ParseEpoch("1597150898")
	require.NoError(t, err)
	assert.Equal(t, 1597150898.0, got)
}
