package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/backpressure"
	"rvdas-go/pkg/record"
)

// fakeReader emits a fixed set of lines, then io.EOF.
type fakeReader struct {
	lines []string
	i     int
}

func (f *fakeReader) Read(ctx context.Context) (string, error) {
	if f.i >= len(f.lines) {
		return "", io.EOF
	}
	line := f.lines[f.i]
	f.i++
	return line, nil
}
func (f *fakeReader) Close() error { return nil }

// passthroughTransform returns its input unchanged, once.
type passthroughTransform struct{}

func (passthroughTransform) Apply(rec *record.Record) []*record.Record {
	return []*record.Record{rec}
}

// collectWriter records every Write call.
type collectWriter struct {
	mu   sync.Mutex
	recs []*record.Record
}

func (c *collectWriter) Write(rec *record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return nil
}
func (c *collectWriter) Close() error { return nil }
func (c *collectWriter) snapshot() []*record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*record.Record, len(c.recs))
	copy(out, c.recs)
	return out
}

func TestReaderNodeFansOutToSubscriberAndStopsOnEOF(t *testing.T) {
	reader := &fakeReader{lines: []string{"one", "two"}}
	readerNode := NewReaderNode("src", reader, nil, nil)

	q := backpressure.NewQueue("writer", 0, backpressure.PolicyBlock, nil)
	writer := &collectWriter{}
	writerNode := NewWriterNode("sink", writer, q, nil)
	readerNode.AddSubscriber(writerNode)

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = readerNode.Run(ctx) }()

	writerCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer wg.Done()
		_ = writerNode.Run(writerCtx)
	}()

	require.Eventually(t, func() bool {
		return len(writer.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()

	got := writer.snapshot()
	assert.Equal(t, "one", got[0].Fields["text"])
	assert.Equal(t, "two", got[1].Fields["text"])
}

func TestTransformNodeAppliesAndFansOut(t *testing.T) {
	in := backpressure.NewQueue("in", 0, backpressure.PolicyBlock, nil)
	tnode := NewTransformNode("t", passthroughTransform{}, in, nil)

	outQ := backpressure.NewQueue("out", 0, backpressure.PolicyBlock, nil)
	writer := &collectWriter{}
	wnode := NewWriterNode("w", writer, outQ, nil)
	tnode.AddSubscriber(wnode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = tnode.Run(ctx) }()
	go func() { defer wg.Done(); _ = wnode.Run(ctx) }()

	require.NoError(t, in.Put(ctx, record.New(1, map[string]record.Value{"a": 1})))

	require.Eventually(t, func() bool {
		return len(writer.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestNodeRunRespectsContextCancellation(t *testing.T) {
	q := backpressure.NewQueue("q", 0, backpressure.PolicyBlock, nil)
	node := NewWriterNode("w", &collectWriter{}, q, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := node.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNodeQuitStopsRunLoop(t *testing.T) {
	q := backpressure.NewQueue("q", 0, backpressure.PolicyBlock, nil)
	node := NewWriterNode("w", &collectWriter{}, q, nil)

	done := make(chan error, 1)
	go func() { done <- node.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	node.Quit()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Quit")
	}
}
