package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/respcache/observe/exporters"
)

// Config selects which telemetry signals are produced and where they go.
// A zero subsystem config leaves that signal as a no-op.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

type TracingConfig struct {
	Enabled bool
	// Exporter is stdout, otlp or none.
	Exporter string
	// SamplePct is the fraction of root spans kept, 0 to 1.
	SamplePct float64
}

type MetricsConfig struct {
	Enabled bool
	// Exporter is prometheus, otlp, stdout or none.
	Exporter string
}

type LoggingConfig struct {
	Enabled bool
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Validate reports the first problem found. Disabled subsystems are not
// checked.
func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return ErrMissingServiceName
	case c.Tracing.Enabled && !exporters.HasTracing(c.Tracing.Exporter):
		return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter)
	case c.Tracing.Enabled && (c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1):
		return fmt.Errorf("%w: %v", ErrInvalidSamplePct, c.Tracing.SamplePct)
	case c.Metrics.Enabled && !exporters.HasMetrics(c.Metrics.Exporter):
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter)
	case c.Logging.Enabled && !knownLevel(c.Logging.Level):
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	return nil
}

// Observer hands out the process-wide telemetry primitives.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Shutdown flushes pending spans and metrics, honours ctx, and returns
//     every provider error joined.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger
	Shutdown(ctx context.Context) error
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	// shutdown hooks of the SDK providers that were started
	closers []func(context.Context) error
}

// NewObserver validates cfg and starts the enabled providers. The providers
// are also installed as the otel globals.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	o := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  noop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: buildLogger(cfg),
	}

	if cfg.Tracing.Enabled {
		tp, err := buildTracerProvider(ctx, cfg.Tracing, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		o.tracer = tp.Tracer(cfg.ServiceName)
		o.closers = append(o.closers, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		mp, err := buildMeterProvider(ctx, cfg.Metrics, res)
		if err != nil {
			_ = o.Shutdown(ctx)
			return nil, err
		}
		otel.SetMeterProvider(mp)
		o.meter = mp.Meter(cfg.ServiceName)
		o.closers = append(o.closers, mp.Shutdown)
	}

	return o, nil
}

func buildLogger(cfg Config) Logger {
	if !cfg.Logging.Enabled {
		return NewNopLogger()
	}
	out := cfg.Logging.Output
	if out == nil {
		out = os.Stderr
	}
	var l Logger
	if cfg.Logging.Pretty {
		l = NewConsoleLogger(cfg.Logging.Level, out)
	} else {
		l = NewLoggerWithWriter(cfg.Logging.Level, out)
	}
	return l.With(F("service", cfg.ServiceName))
}

func buildTracerProvider(ctx context.Context, cfg TracingConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := exporters.NewTracingExporter(ctx, cfg.Exporter)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SamplePct)
	switch {
	case cfg.SamplePct >= 1:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplePct <= 0:
		sampler = sdktrace.NeverSample()
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithBatcher(exp),
	), nil
}

func buildMeterProvider(ctx context.Context, cfg MetricsConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := exporters.NewMetricsReader(ctx, cfg.Exporter)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	for _, closeFn := range o.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
