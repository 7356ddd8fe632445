package writers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/record"
)

func TestCachedDataWriterPostsSerializedRecord(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cw, err := NewCachedDataWriter(CachedDataWriterConfig{URL: srv.URL})
	require.NoError(t, err)
	defer cw.Close()

	rec := record.New(1.0, map[string]record.Value{"temp": 19.5})
	rec.DataID = "sensor1"
	require.NoError(t, cw.Write(rec))
	assert.Contains(t, string(gotBody), "sensor1")
}

func TestCachedDataWriterReturnsErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cw, err := NewCachedDataWriter(CachedDataWriterConfig{URL: srv.URL})
	require.NoError(t, err)
	defer cw.Close()

	err = cw.Write(record.New(1.0, map[string]record.Value{"temp": 1.0}))
	assert.Error(t, err)
}
