// Package tracing provides the tracer-provider construction and
// StartSpan helper used by internal/pipeline (one span per Node
// processing call) and internal/control (one span per ControlAPI
// mutating transaction), per SPEC_FULL.md's ambient-stack tracing
// section.
//
// Adapted from pkg/tracing/tracing.go's TracingManager/TraceableContext,
// trimmed to provider construction plus a single StartSpan entry point:
// an earlier version's TraceableDispatcher/TraceableLogEntry/ProcessingTrace/
// TraceHandler HTTP middleware belong to its enterprise log-ingest HTTP
// surface, which spec.md's Non-goals exclude (no admin/REST surface) --
// dropped rather than adapted, since nothing in SPEC_FULL.md hands an
// incoming HTTP request to a traced handler chain.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Exporter       string // "jaeger", "otlp", "console"
	Endpoint       string
	SampleRate     float64
	BatchTimeout   time.Duration
	MaxBatchSize   int
	Headers        map[string]string
}

// DefaultConfig returns a disabled configuration with rvdasd defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "rvdasd",
		ServiceVersion: "v1.0.0",
		Environment:    "production",
		Exporter:       "otlp",
		Endpoint:       "http://localhost:4318/v1/traces",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		MaxBatchSize:   512,
		Headers:        make(map[string]string),
	}
}

// Provider owns the OTel tracer provider lifecycle: a no-op tracer when
// disabled, a real batched-exporter provider when enabled.
type Provider struct {
	config   Config
	logger   *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewProvider builds a Provider. When config.Enabled is false, it returns
// a working no-op tracer rather than an error, so callers never need to
// nil-check before calling StartSpan.
func NewProvider(config Config, logger *logrus.Logger) (*Provider, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if !config.Enabled {
		return &Provider{config: config, logger: logger, tracer: otel.Tracer("noop")}, nil
	}

	p := &Provider{config: config, logger: logger}
	if err := p.initialize(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) initialize() error {
	exporter, err := p.createExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := p.createResource()
	if err != nil {
		return fmt.Errorf("failed to create trace resource: %w", err)
	}

	p.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter,
			trace.WithBatchTimeout(p.config.BatchTimeout),
			trace.WithMaxExportBatchSize(p.config.MaxBatchSize),
		),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(p.config.SampleRate)),
	)

	otel.SetTracerProvider(p.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracer = otel.Tracer(p.config.ServiceName)

	p.logger.WithFields(logrus.Fields{
		"service_name": p.config.ServiceName,
		"exporter":     p.config.Exporter,
		"endpoint":     p.config.Endpoint,
		"sample_rate":  p.config.SampleRate,
	}).Info("distributed tracing initialized")

	return nil
}

func (p *Provider) createExporter() (trace.SpanExporter, error) {
	switch p.config.Exporter {
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(p.config.Endpoint)))

	case "otlp":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(p.config.Endpoint)}
		if len(p.config.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(p.config.Headers))
		}
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))

	case "console":
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint("http://localhost:4318"),
			otlptracehttp.WithInsecure(),
		))

	default:
		return nil, fmt.Errorf("unsupported exporter: %s", p.config.Exporter)
	}
}

func (p *Provider) createResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(p.config.ServiceName),
			semconv.ServiceVersion(p.config.ServiceVersion),
			semconv.DeploymentEnvironment(p.config.Environment),
		),
	)
}

// Tracer returns the underlying OTel tracer.
func (p *Provider) Tracer() oteltrace.Tracer {
	return p.tracer
}

// Shutdown flushes and stops the tracer provider. A no-op if tracing was
// disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}

// Span wraps an active span with the attribute/error helpers
// internal/pipeline and internal/control need.
type Span struct {
	ctx  context.Context
	span oteltrace.Span
}

// StartSpan starts operationName as a child of ctx's current span (or a
// new root span if none), returning the derived context alongside the
// Span handle.
func (p *Provider) StartSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	spanCtx, span := p.tracer.Start(ctx, operationName)
	return spanCtx, &Span{ctx: spanCtx, span: span}
}

// Context returns the span-carrying context to pass to downstream calls.
func (s *Span) Context() context.Context {
	return s.ctx
}

// SetAttribute adds an attribute to the span, converting common Go types.
// A nil Span is a no-op, so callers may skip a tracing-enabled check.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s == nil {
		return
	}
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.span.SetAttributes(attr)
}

// SetError records err on the span and sets its status to Error. A nil
// err leaves the span's status unset.
func (s *Span) SetError(err error) {
	if s == nil || err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End finalizes the span. It sets no status of its own; a span marked by
// SetError keeps its Error status. A nil Span is a no-op.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.span.End()
}

// TraceIDs extracts the trace/span ID pair from ctx, for attaching to log
// entries -- empty strings if ctx carries no valid span.
func TraceIDs(ctx context.Context) (traceID, spanID string) {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		spanID = span.SpanContext().SpanID().String()
	}
	return
}
