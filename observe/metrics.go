package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestMetrics records per-request server metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type RequestMetrics interface {
	RecordRequest(ctx context.Context, meta RequestMeta, status int, duration time.Duration)
}

// CacheMetrics receives response cache events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Blocking: calls happen on the request path and must return quickly.
type CacheMetrics interface {
	// RecordLookup counts a store read, labelled hit or miss.
	RecordLookup(ctx context.Context, route string, hit bool)
	// RecordStore counts a response written into the store.
	RecordStore(ctx context.Context, route string, size int)
	// RecordExpiration counts an entry deleted because it was stale on read.
	RecordExpiration(ctx context.Context, route string)
	// RecordClear counts a wholesale invalidation and how many entries it dropped.
	RecordClear(ctx context.Context, removed int)
}

type requestMetrics struct {
	totalCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewRequestMetrics creates request counters on the given meter.
func NewRequestMetrics(meter metric.Meter) (RequestMetrics, error) {
	totalCount, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of handled HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"http.server.request.duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &requestMetrics{
		totalCount:   totalCount,
		durationHist: durationHist,
	}, nil
}

func (m *requestMetrics) RecordRequest(ctx context.Context, meta RequestMeta, status int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("http.request.method", meta.Method),
		attribute.String("http.route", meta.Route),
		attribute.String("http.response.status_code", strconv.Itoa(status)),
	)
	m.totalCount.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type cacheMetrics struct {
	lookups     metric.Int64Counter
	stores      metric.Int64Counter
	storedBytes metric.Int64Counter
	expirations metric.Int64Counter
	clears      metric.Int64Counter
	cleared     metric.Int64Counter
}

// NewCacheMetrics creates the response cache counters on the given meter.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	m := &cacheMetrics{}
	var err error

	if m.lookups, err = meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Response cache reads by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.stores, err = meter.Int64Counter(
		"cache.stores",
		metric.WithDescription("Responses written into the cache"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}
	if m.storedBytes, err = meter.Int64Counter(
		"cache.stored_bytes",
		metric.WithDescription("Payload bytes written into the cache"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.expirations, err = meter.Int64Counter(
		"cache.expirations",
		metric.WithDescription("Entries deleted because they were stale on read"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}
	if m.clears, err = meter.Int64Counter(
		"cache.clears",
		metric.WithDescription("Wholesale cache invalidations"),
		metric.WithUnit("{clear}"),
	); err != nil {
		return nil, err
	}
	if m.cleared, err = meter.Int64Counter(
		"cache.cleared_entries",
		metric.WithDescription("Entries dropped by wholesale invalidations"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *cacheMetrics) RecordLookup(ctx context.Context, route string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("cache.result", result),
	))
}

func (m *cacheMetrics) RecordStore(ctx context.Context, route string, size int) {
	opt := metric.WithAttributes(attribute.String("http.route", route))
	m.stores.Add(ctx, 1, opt)
	m.storedBytes.Add(ctx, int64(size), opt)
}

func (m *cacheMetrics) RecordExpiration(ctx context.Context, route string) {
	m.expirations.Add(ctx, 1, metric.WithAttributes(attribute.String("http.route", route)))
}

func (m *cacheMetrics) RecordClear(ctx context.Context, removed int) {
	m.clears.Add(ctx, 1)
	m.cleared.Add(ctx, int64(removed))
}

// NopCacheMetrics returns a CacheMetrics that records nothing.
func NopCacheMetrics() CacheMetrics {
	return nopCacheMetrics{}
}

type nopCacheMetrics struct{}

func (nopCacheMetrics) RecordLookup(context.Context, string, bool) {}
func (nopCacheMetrics) RecordStore(context.Context, string, int)   {}
func (nopCacheMetrics) RecordExpiration(context.Context, string)   {}
func (nopCacheMetrics) RecordClear(context.Context, int)           {}

type nopRequestMetrics struct{}

func (nopRequestMetrics) RecordRequest(context.Context, RequestMeta, int, time.Duration) {}
