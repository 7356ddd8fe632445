package writers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"rvdas-go/pkg/record"
)

// CachedDataWriterConfig configures a CachedDataWriter.
type CachedDataWriterConfig struct {
	// URL is the cached-data-server push endpoint.
	URL string

	Timeout time.Duration

	// Client lets tests substitute a fake http.Client. Defaults to
	// &http.Client{Timeout: Timeout}.
	Client *http.Client

	Logger *logrus.Logger
}

// CachedDataWriter serializes a Record and POSTs it to a cached-data-server
// endpoint. Per spec.md's Non-goals, the server's own websocket push
// protocol is out of scope -- this writer only needs to serialize and push;
// it never interprets the response body beyond the status code. Grounded
// on internal/sinks/loki_sink.go's sendToLoki (json.Marshal, POST, check
// status, move on).
type CachedDataWriter struct {
	cfg    CachedDataWriterConfig
	client *http.Client
}

func NewCachedDataWriter(cfg CachedDataWriterConfig) (*CachedDataWriter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("writers: cached data server url is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &CachedDataWriter{cfg: cfg, client: client}, nil
}

func (w *CachedDataWriter) Write(rec *record.Record) error {
	if rec == nil {
		return nil
	}
	body, err := rec.ToJSON()
	if err != nil {
		return fmt.Errorf("writers: failed to serialize record for cached data server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("writers: failed to build cached data request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("writers: cached data push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("writers: cached data server returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *CachedDataWriter) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
