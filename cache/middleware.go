package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/respcache/observe"
)

// HeaderXCache is the response header that reports cache participation.
const HeaderXCache = "X-Cache"

// X-Cache values.
const (
	XCacheHit  = "HIT"
	XCacheMiss = "MISS"
)

// DefaultReplayHeaders lists the headers captured and replayed when
// MiddlewareConfig.ReplayHeaders is empty.
var DefaultReplayHeaders = []string{"Content-Type", "Cache-Control"}

// MiddlewareConfig configures a Middleware.
type MiddlewareConfig struct {
	// Exclusions are path substrings. A request whose path contains any of
	// them bypasses the cache entirely.
	Exclusions []string

	// ReplayHeaders is the allow-list of response headers stored with an
	// entry and set again on a hit.
	ReplayHeaders []string

	// Identity resolves the caller segment of the key.
	// Defaults to PrincipalIdentity.
	Identity IdentityFunc

	// RouteLabel names the route in metrics and on stored entries. It runs
	// after the handler, so router state is complete.
	// Defaults to ChiRouteLabel.
	RouteLabel func(r *http.Request) string

	Logger  observe.Logger
	Metrics observe.CacheMetrics
}

// Middleware serves fresh GET responses from a Store and captures
// successful responses on a miss.
type Middleware struct {
	store      *Store
	exclusions []string
	replay     []string
	identity   IdentityFunc
	routeLabel func(r *http.Request) string
	logger     observe.Logger
	metrics    observe.CacheMetrics
}

// NewMiddleware creates a Middleware backed by store.
func NewMiddleware(store *Store, cfg MiddlewareConfig) *Middleware {
	m := &Middleware{
		store:      store,
		identity:   cfg.Identity,
		routeLabel: cfg.RouteLabel,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	for _, ex := range cfg.Exclusions {
		if ex != "" {
			m.exclusions = append(m.exclusions, ex)
		}
	}
	replay := cfg.ReplayHeaders
	if len(replay) == 0 {
		replay = DefaultReplayHeaders
	}
	for _, h := range replay {
		m.replay = append(m.replay, http.CanonicalHeaderKey(h))
	}
	if m.identity == nil {
		m.identity = PrincipalIdentity
	}
	if m.routeLabel == nil {
		m.routeLabel = ChiRouteLabel
	}
	if m.logger == nil {
		m.logger = observe.NewNopLogger()
	}
	if m.metrics == nil {
		m.metrics = observe.NopCacheMetrics()
	}
	return m
}

// Wrap returns the middleware as a func(http.Handler) http.Handler, the shape
// chi's Router.Use expects.
func (m *Middleware) Wrap() func(http.Handler) http.Handler {
	return m.Handler
}

// Handler returns an http.Handler that consults the store before calling next.
// A hit always replays status 200 with the stored headers and body.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := Key(r.Method, r.URL.RequestURI(), m.identity(r))

		// TTL follows the path being read; labels stay bounded.
		if entry, ok := m.store.Get(ctx, key, r.URL.Path); ok {
			m.metrics.RecordLookup(ctx, boundedRoute(entry.Route), true)
			m.logger.Debug(ctx, "cache hit", observe.F("key", key))

			h := w.Header()
			for name, value := range entry.Headers {
				h.Set(name, value)
			}
			h.Set(HeaderXCache, XCacheHit)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(entry.Payload)
			return
		}

		cw := &captureWriter{ResponseWriter: w, replay: m.replay}
		next.ServeHTTP(cw, r)

		route := boundedRoute(m.routeLabel(r))
		m.metrics.RecordLookup(ctx, route, false)

		if !cw.capturing {
			return
		}
		if cw.failed {
			m.logger.Debug(ctx, "response not stored: write failed", observe.F("key", key))
			return
		}
		m.store.Set(ctx, key, cw.body.Bytes(), route, cw.headers)
		m.metrics.RecordStore(ctx, route, cw.body.Len())
	})
}

// ChiRouteLabel returns the chi route pattern that served r, or "" when r
// was not routed by chi.
func ChiRouteLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func boundedRoute(route string) string {
	if route == "" {
		return observe.UnmatchedRoute
	}
	return route
}

func (m *Middleware) excluded(path string) bool {
	for _, ex := range m.exclusions {
		if strings.Contains(path, ex) {
			return true
		}
	}
	return false
}

// captureWriter observes the handler's response on a miss. It decides once,
// at the first final status, whether the response is cacheable. For 2xx it
// marks the response MISS before the header goes out, snapshots the
// allow-listed headers and tees the body. A failed or short write to the
// client marks the capture failed, and nothing is stored.
type captureWriter struct {
	http.ResponseWriter

	replay      []string
	wroteHeader bool
	capturing   bool
	failed      bool
	headers     map[string]string
	body        bytes.Buffer
}

func (w *captureWriter) WriteHeader(code int) {
	if w.wroteHeader {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	// Informational responses precede the final status.
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.wroteHeader = true

	if code >= 200 && code < 300 {
		w.capturing = true
		h := w.ResponseWriter.Header()
		h.Set(HeaderXCache, XCacheMiss)
		w.headers = make(map[string]string, len(w.replay))
		for _, name := range w.replay {
			if v := h.Get(name); v != "" {
				w.headers[name] = v
			}
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	if err != nil || n < len(b) {
		w.failed = true
	}
	if w.capturing && !w.failed {
		w.body.Write(b)
	}
	return n, err
}

// Flush sends buffered data to the client. The captured copy is unaffected.
func (w *captureWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *captureWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
