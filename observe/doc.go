// Package observe provides observability primitives for the response cache
// and the HTTP server around it.
//
// It owns the structured logger (zerolog), OpenTelemetry tracing and metrics
// setup, an HTTP middleware that records one span, one duration sample and one
// access log line per request, and the counters the cache store reports into.
// Consumers wire the Observer into the server's composition root.
package observe
