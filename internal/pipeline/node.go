// Package pipeline implements the dataflow runtime of spec.md §4.2/§4.5:
// Nodes wrapping a Reader, Transform, or Writer, wired into a subscriber
// graph and driven by worker goroutines.
//
// The Node contract -- a name, a processor, a subscription list, and a
// run loop that either pulls from its own queue or calls its reader
// directly, then fans any result out to subscribers -- is grounded on
// original_source/logger/dataflow/dataflow_node.py (AbstractDataflowNode)
// and asyncio_queue_node.py (AsyncioQueueNode): the asyncio.Queue there
// becomes a pkg/backpressure.Queue here, and the threading.Lock guarding
// asyncio_queue_node.py's subscriber list (kept as a plain lock rather
// than an asyncio.Lock because subscription can happen from a different
// thread than the run loop) becomes the sync.Mutex below for the same
// reason. The worker-goroutine shape itself -- a per-node loop selecting
// on ctx.Done(), logging start/stop around it -- follows
// internal/dispatcher/dispatcher.go's worker().
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"rvdas-go/internal/parser"
	"rvdas-go/internal/readers"
	"rvdas-go/internal/tracing"
	"rvdas-go/internal/transform"
	"rvdas-go/internal/writers"
	"rvdas-go/pkg/backpressure"
	"rvdas-go/pkg/record"
)

// Role identifies which of the three processor kinds a Node wraps.
type Role int

const (
	RoleReader Role = iota
	RoleTransform
	RoleWriter
)

func (r Role) String() string {
	switch r {
	case RoleReader:
		return "reader"
	case RoleTransform:
		return "transform"
	case RoleWriter:
		return "writer"
	default:
		return "unknown"
	}
}

// Node wraps exactly one of a Reader, a Transform, or a Writer and knows
// how to drive it in a run loop, per spec.md §4.2's Readers→Transforms→
// Writers pipeline shape.
type Node struct {
	Name string
	role Role

	reader readers.Reader
	parse  *parser.Parser // optional; nil means wrap raw text verbatim

	proc transform.Transform

	sink writers.Writer

	// Queue is this Node's inbound queue. nil for a RoleReader Node,
	// since readers pull from their own source rather than subscribing.
	Queue *backpressure.Queue

	// subsMu guards subscribers the same way asyncio_queue_node.py uses a
	// plain threading.Lock rather than an asyncio.Lock: subscription can
	// be registered from a different goroutine than the one running the
	// loop that reads this list.
	subsMu      sync.Mutex
	subscribers []*Node

	quit   atomic.Bool
	logger *logrus.Logger

	// tracer is optional; SetTracer enables one span per processing
	// call (transform Apply / Writer.Write), per SPEC_FULL.md's tracing
	// section. A nil tracer makes startSpan a no-op.
	tracer *tracing.Provider
}

// SetTracer enables per-call span tracing for this Node.
func (n *Node) SetTracer(t *tracing.Provider) {
	n.tracer = t
}

func (n *Node) startSpan(ctx context.Context, op string) (context.Context, *tracing.Span) {
	if n.tracer == nil {
		return ctx, nil
	}
	return n.tracer.StartSpan(ctx, "pipeline."+n.Name+"."+op)
}

// NewReaderNode builds a Node around a Reader. parse may be nil, in which
// case each raw line is wrapped as a Record with a single "text" field.
func NewReaderNode(name string, reader readers.Reader, parse *parser.Parser, logger *logrus.Logger) *Node {
	return &Node{Name: name, role: RoleReader, reader: reader, parse: parse, logger: orStandard(logger)}
}

// NewTransformNode builds a Node around a Transform, consuming from queue.
func NewTransformNode(name string, proc transform.Transform, queue *backpressure.Queue, logger *logrus.Logger) *Node {
	return &Node{Name: name, role: RoleTransform, proc: proc, Queue: queue, logger: orStandard(logger)}
}

// NewWriterNode builds a Node around a Writer, consuming from queue.
func NewWriterNode(name string, sink writers.Writer, queue *backpressure.Queue, logger *logrus.Logger) *Node {
	return &Node{Name: name, role: RoleWriter, sink: sink, Queue: queue, logger: orStandard(logger)}
}

func orStandard(l *logrus.Logger) *logrus.Logger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}

// AddSubscriber registers sub to receive every Record this Node produces.
// Safe to call concurrently with Run, mirroring asyncio_queue_node.py's
// add_subscriber under its threading.Lock.
func (n *Node) AddSubscriber(sub *Node) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	n.subscribers = append(n.subscribers, sub)
}

func (n *Node) subscriberSnapshot() []*Node {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	out := make([]*Node, len(n.subscribers))
	copy(out, n.subscribers)
	return out
}

// Quit sets this Node's quit flag and, if it has an inbound queue, closes
// it so a blocked Get wakes up. Matches dataflow_node.py's quit() setter.
func (n *Node) Quit() {
	n.quit.Store(true)
	if n.Queue != nil {
		n.Queue.Close()
	}
}

// Run drives the Node until ctx is cancelled, Quit is called, or (for a
// RoleReader Node) the underlying Reader is exhausted.
func (n *Node) Run(ctx context.Context) error {
	logger := n.logger.WithFields(logrus.Fields{"component": "pipeline", "node": n.Name, "role": n.role.String()})
	logger.Info("node started")
	defer logger.Info("node stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n.quit.Load() {
			return nil
		}

		switch n.role {
		case RoleReader:
			rec, err := n.readOne(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					logger.Info("reader exhausted")
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.WithError(err).Warn("reader error")
				continue
			}
			if rec != nil {
				n.fanOut(ctx, rec, logger)
			}

		case RoleTransform:
			in, err := n.Queue.Get(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil // queue closed
			}
			spanCtx, span := n.startSpan(ctx, "transform")
			results := n.proc.Apply(in)
			span.End()
			for _, out := range results {
				n.fanOut(spanCtx, out, logger)
			}

		case RoleWriter:
			in, err := n.Queue.Get(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil // queue closed
			}
			_, span := n.startSpan(ctx, "write")
			if err := n.sink.Write(in); err != nil {
				span.SetError(err)
				logger.WithError(err).Error("writer error")
			}
			span.End()
		}
	}
}

// readOne pulls one raw line and turns it into a Record, via the Parser
// if one was configured.
func (n *Node) readOne(ctx context.Context) (*record.Record, error) {
	line, err := n.reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	if n.parse != nil {
		return n.parse.Parse(line), nil
	}
	return record.New(0, map[string]record.Value{"text": line}), nil
}

func (n *Node) fanOut(ctx context.Context, rec *record.Record, logger *logrus.Entry) {
	for _, sub := range n.subscriberSnapshot() {
		if err := sub.Queue.Put(ctx, rec); err != nil && ctx.Err() == nil {
			logger.WithError(err).WithField("subscriber", sub.Name).Warn("failed to deliver record to subscriber")
		}
	}
}

// Close releases the Node's owned processor resources. It does not close
// subscriber queues; internal/app's App.Stop owns overall shutdown ordering.
func (n *Node) Close() error {
	switch n.role {
	case RoleReader:
		return n.reader.Close()
	case RoleWriter:
		return n.sink.Close()
	default:
		return nil
	}
}
