package transform

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/record"
)

func rec(fields map[string]record.Value) *record.Record {
	return record.New(100.0, fields)
}

func TestFilterKeepsOnlyNamedFields(t *testing.T) {
	tr := NewFilterTransform([]string{"a"})
	out := tr.Apply(rec(map[string]record.Value{"a": 1, "b": 2}))
	require.Len(t, out, 1)
	assert.Equal(t, map[string]record.Value{"a": 1}, out[0].Fields)
}

func TestFilterDropsWhenNothingSurvives(t *testing.T) {
	tr := NewFilterTransform([]string{"z"})
	out := tr.Apply(rec(map[string]record.Value{"a": 1}))
	assert.Nil(t, out)
}

func TestStripRemovesNamedFields(t *testing.T) {
	tr := NewStripTransform([]string{"a"})
	out := tr.Apply(rec(map[string]record.Value{"a": 1, "b": 2}))
	require.Len(t, out, 1)
	assert.Equal(t, map[string]record.Value{"b": 2}, out[0].Fields)
}

func TestSelectOnlyAllowedDataID(t *testing.T) {
	tr := NewSelectTransform([]string{"sensor1"})
	r := rec(map[string]record.Value{"a": 1})
	r.DataID = "sensor2"
	assert.Nil(t, tr.Apply(r))

	r.DataID = "sensor1"
	out := tr.Apply(r)
	require.Len(t, out, 1)
}

func TestSplitFansOutOneFieldPerRecord(t *testing.T) {
	tr := &SplitTransform{}
	out := tr.Apply(rec(map[string]record.Value{"a": 1, "b": 2}))
	assert.Len(t, out, 2)
}

func TestRenameMapsFieldNames(t *testing.T) {
	tr := NewRenameTransform(map[string]string{"raw": "canonical"})
	out := tr.Apply(rec(map[string]record.Value{"raw": 1, "other": 2}))
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Fields["canonical"])
	assert.Equal(t, 2, out[0].Fields["other"])
}

func TestValueFilterDropsOutOfBoundsFieldOnly(t *testing.T) {
	lower, upper := 0.0, 100.0
	tr := &ValueFilterTransform{Bounds: map[string]Bound{"temp": {Lower: &lower, Upper: &upper}}}
	out := tr.Apply(rec(map[string]record.Value{"temp": 200.0, "other": 1}))
	require.Len(t, out, 1)
	_, hasTemp := out[0].Fields["temp"]
	assert.False(t, hasTemp)
	assert.Equal(t, 1, out[0].Fields["other"])
}

func TestValueFilterIgnoreDropsEntireRecord(t *testing.T) {
	tr := &ValueFilterIgnoreTransform{ExactMatch: map[string]record.Value{"status": "bad"}}
	assert.Nil(t, tr.Apply(rec(map[string]record.Value{"status": "bad"})))
	assert.NotNil(t, tr.Apply(rec(map[string]record.Value{"status": "good"})))
}

func TestRegexFilterKeepsMatchingRecords(t *testing.T) {
	tr := &RegexFilterTransform{Field: "msg", Regex: regexp.MustCompile(`^GP`)}
	assert.NotNil(t, tr.Apply(rec(map[string]record.Value{"msg": "GPGGA"})))
	assert.Nil(t, tr.Apply(rec(map[string]record.Value{"msg": "XXGGA"})))
}

func TestToJSONThenFromJSONRoundTrips(t *testing.T) {
	r := rec(map[string]record.Value{"a": 1.0})
	r.DataID = "sensor1"
	toJSON := &ToJSONTransform{}
	out := toJSON.Apply(r)
	require.Len(t, out, 1)

	fromJSON := &FromJSONTransform{}
	back := fromJSON.Apply(out[0])
	require.Len(t, back, 1)
	assert.Equal(t, "sensor1", back[0].DataID)
}
