package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/backpressure"
)

func TestNewGraphWiresReaderToWriter(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "in.log")
	require.NoError(t, os.WriteFile(logPath, []byte("hello\n"), 0o644))

	outBase := filepath.Join(dir, "out")

	specs := map[string]NodeSpec{
		"tail": {
			Class:  "logfile_reader",
			Kwargs: map[string]interface{}{"path": logPath, "seek": "beginning"},
		},
		"store": {
			Class:         "file_writer",
			Kwargs:        map[string]interface{}{"filename": outBase},
			Subscriptions: []string{"tail"},
			QueuePolicy:   backpressure.PolicyBlock,
		},
	}

	g, err := NewGraph(specs, nil)
	require.NoError(t, err)
	assert.NotNil(t, g.Node("tail"))
	assert.NotNil(t, g.Node("store"))
	assert.Len(t, g.Names(), 2)
}

func TestNewGraphRejectsUnknownSubscriptionTarget(t *testing.T) {
	specs := map[string]NodeSpec{
		"store": {
			Class:         "file_writer",
			Kwargs:        map[string]interface{}{"filename": "/tmp/whatever"},
			Subscriptions: []string{"missing"},
		},
	}
	_, err := NewGraph(specs, nil)
	assert.Error(t, err)
}

func TestNewGraphRejectsUnknownClass(t *testing.T) {
	specs := map[string]NodeSpec{
		"x": {Class: "not_a_real_component"},
	}
	_, err := NewGraph(specs, nil)
	assert.Error(t, err)
}
