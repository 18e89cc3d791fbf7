package observe

import "errors"

// Config validation failures. Validate wraps these with the offending value.
var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: tracing sample fraction outside [0, 1]")
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
)

// ErrNilObserver is returned by MiddlewareFromObserver for a nil Observer.
var ErrNilObserver = errors.New("observe: observer is nil")
