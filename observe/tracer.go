package observe

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// UnmatchedRoute labels requests that no route pattern matched. Raw paths
// are never used as labels, so label cardinality stays bounded.
const UnmatchedRoute = "other"

// RequestMeta identifies an HTTP request for telemetry purposes.
type RequestMeta struct {
	Method string
	// Route is the matched route pattern, UnmatchedRoute, or "" before
	// routing has happened.
	Route string
}

// SpanName returns the span name for this request.
// Format: http.server.<METHOD> <route>, or http.server.<METHOD> while the
// route is unknown.
func (m RequestMeta) SpanName() string {
	if m.Route == "" {
		return "http.server." + m.Method
	}
	return "http.server." + m.Method + " " + m.Route
}

// Tracer wraps OpenTelemetry tracing with request span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a server span for the request.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan records the response status and ends the span.
	EndSpan(span trace.Span, status int)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("http.request.method", meta.Method)}
	if meta.Route != "" {
		attrs = append(attrs, attribute.String("http.route", meta.Route))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// EndSpan marks 5xx responses as errors; 4xx are the client's problem.
func (t *tracerImpl) EndSpan(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ int) {
	span.End()
}
