package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/internal/recordstore"
	"rvdas-go/pkg/record"
)

func startListener(t *testing.T) (*Listener, string, context.CancelFunc) {
	t.Helper()
	store := recordstore.NewMemory()
	l, err := New(Config{Addr: "127.0.0.1:0", Store: store})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)
	return l, l.Addr().String(), cancel
}

func TestListenerWriteThenReadRecords(t *testing.T) {
	l, addr, cancel := startListener(t)
	defer cancel()
	_ = l

	rec := record.New(1.0, map[string]record.Value{"temp": 19.5})
	body, err := rec.ToJSON()
	require.NoError(t, err)

	resp, err := http.Post(fmt.Sprintf("http://%s/records/sensor1", addr), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(fmt.Sprintf("http://%s/records/sensor1?start=0", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []record.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, 19.5, got[0].Fields["temp"])
}

func TestListenerRejectsInvalidBody(t *testing.T) {
	_, addr, cancel := startListener(t)
	defer cancel()

	resp, err := http.Post(fmt.Sprintf("http://%s/records/sensor1", addr), "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
