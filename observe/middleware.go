package observe

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
)

// HTTPMiddleware wraps an http.Handler with tracing, metrics and an access log.
//
// Contract:
//   - Concurrency: Handler() returns a handler safe for concurrent use.
//   - Ownership: request and response bytes pass through unmodified.
type HTTPMiddleware struct {
	tracer  Tracer
	metrics RequestMetrics
	logger  Logger
}

// NewHTTPMiddleware creates a middleware from its parts. Nil parts are
// replaced with no-ops.
func NewHTTPMiddleware(tracer Tracer, metrics RequestMetrics, logger Logger) *HTTPMiddleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = nopRequestMetrics{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &HTTPMiddleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver builds an HTTPMiddleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*HTTPMiddleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewRequestMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewHTTPMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Handler wraps next.
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := RequestMeta{Method: r.Method}
		ctx, span := m.tracer.StartSpan(r.Context(), meta)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		// chi fills the pattern in while routing, after the span has started.
		meta.Route = UnmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				meta.Route = pattern
			}
		}
		span.SetName(meta.SpanName())
		span.SetAttributes(attribute.String("http.route", meta.Route))

		m.tracer.EndSpan(span, status)
		m.metrics.RecordRequest(ctx, meta, status, duration)

		fields := []Field{
			F("method", meta.Method),
			F("path", r.URL.Path),
			F("route", meta.Route),
			F("status", status),
			F("bytes", ww.BytesWritten()),
			F("duration_ms", float64(duration.Microseconds())/1000),
			F("cache", ww.Header().Get("X-Cache")),
		}
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			fields = append(fields, F("request_id", reqID))
		}

		if status >= http.StatusInternalServerError {
			m.logger.Error(ctx, "request failed", fields...)
		} else {
			m.logger.Info(ctx, "request completed", fields...)
		}
	})
}

// Wrap is Handler in the func(http.Handler) http.Handler shape chi expects.
func (m *HTTPMiddleware) Wrap() func(http.Handler) http.Handler {
	return m.Handler
}
