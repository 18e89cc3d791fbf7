// Package exporters maps the exporter names used in configuration onto
// OpenTelemetry span exporters and metric readers.
//
// OTLP exporters read their endpoint from the standard OTEL_EXPORTER_OTLP_*
// environment variables. The prometheus reader registers with the default
// Prometheus registerer, which is what promhttp.Handler serves.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrUnknownExporter is returned for a name with no registered factory.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")

	// ErrEndpointNotConfigured is returned for otlp when no collector
	// endpoint is set in the environment.
	ErrEndpointNotConfigured = errors.New("exporters: otlp endpoint not configured")
)

type (
	spanFactory   func(context.Context) (sdktrace.SpanExporter, error)
	readerFactory func(context.Context) (sdkmetric.Reader, error)
)

var spanFactories = map[string]spanFactory{
	"":       discardSpans,
	"none":   discardSpans,
	"stdout": stdoutSpans,
	"otlp":   otlpSpans,
}

var readerFactories = map[string]readerFactory{
	"":           manualReader,
	"none":       manualReader,
	"stdout":     stdoutReader,
	"otlp":       otlpReader,
	"prometheus": prometheusReader,
}

func discardSpans(context.Context) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithWriter(io.Discard))
}

func stdoutSpans(context.Context) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
}

func otlpSpans(ctx context.Context) (sdktrace.SpanExporter, error) {
	if err := requireEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
		return nil, err
	}
	return otlptracegrpc.New(ctx)
}

func manualReader(context.Context) (sdkmetric.Reader, error) {
	return sdkmetric.NewManualReader(), nil
}

func stdoutReader(context.Context) (sdkmetric.Reader, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}

func otlpReader(ctx context.Context) (sdkmetric.Reader, error) {
	if err := requireEndpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
		return nil, err
	}
	exp, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}

func prometheusReader(context.Context) (sdkmetric.Reader, error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	return exp, nil
}

func requireEndpoint(signalVar string) error {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" || os.Getenv(signalVar) != "" {
		return nil
	}
	return fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or %s", ErrEndpointNotConfigured, signalVar)
}

// HasTracing reports whether name is a known span exporter.
func HasTracing(name string) bool {
	_, ok := spanFactories[name]
	return ok
}

// HasMetrics reports whether name is a known metric reader.
func HasMetrics(name string) bool {
	_, ok := readerFactories[name]
	return ok
}

// NewTracingExporter builds the span exporter registered as name: stdout,
// otlp, or none.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	build, ok := spanFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: tracing %q", ErrUnknownExporter, name)
	}
	exp, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter %q: %w", name, err)
	}
	return exp, nil
}

// NewMetricsReader builds the metric reader registered as name: stdout,
// otlp, prometheus, or none. none is a manual reader, collected only on
// demand.
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	build, ok := readerFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
	}
	r, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("metrics reader %q: %w", name, err)
	}
	return r, nil
}
