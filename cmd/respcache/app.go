package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/respcache/auth"
	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/config"
	"github.com/jonwraymond/respcache/health"
	"github.com/jonwraymond/respcache/observe"
	"github.com/jonwraymond/respcache/resilience"
)

// app holds the wired components the router is built from.
type app struct {
	cfg      config.Config
	logger   observe.Logger
	store    *cache.Store
	cacheMW  *cache.Middleware
	httpMW   *observe.HTTPMiddleware
	authn    auth.Authenticator
	health   *health.Aggregator
	subjects *subjectList
}

func newApp(cfg config.Config, obs observe.Observer) (*app, error) {
	logger := obs.Logger()

	cacheMetrics, err := observe.NewCacheMetrics(obs.Meter())
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}
	httpMW, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, fmt.Errorf("http middleware: %w", err)
	}

	cacheLogger := logger.With(observe.F("component", "cache"))
	store := cache.NewStore(cfg.TTLPolicy(),
		cache.WithMetrics(cacheMetrics),
		cache.WithLogger(cacheLogger),
	)
	cacheMW := cache.NewMiddleware(store, cache.MiddlewareConfig{
		Exclusions:    cfg.Cache.Exclusions,
		ReplayHeaders: cfg.Cache.ReplayHeaders,
		Logger:        cacheLogger,
		Metrics:       cacheMetrics,
	})

	agg := health.NewAggregator()
	agg.Register("response-cache", cache.NewStoreChecker(store, cfg.Cache.WarnEntries))
	agg.Register("heap", health.NewHeapChecker(health.HeapCheckerConfig{
		Limit: uint64(cfg.Cache.HeapLimitMB) << 20,
	}))

	authn, breaker := newAuthenticator(cfg.Auth, logger)
	if breaker != nil {
		agg.Register("jwks", breaker.Checker("jwks"))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		cacheMW:  cacheMW,
		httpMW:   httpMW,
		authn:    authn,
		health:   agg,
		subjects: newSubjectList("mathematics", "physics", "chemistry"),
	}, nil
}

// newAuthenticator builds the authenticator chain from cfg. It returns a nil
// Authenticator when nothing is configured, and the JWKS breaker when a
// remote key set is used.
func newAuthenticator(cfg config.AuthConfig, logger observe.Logger) (auth.Authenticator, *resilience.Breaker) {
	var (
		chain   []auth.Authenticator
		breaker *resilience.Breaker
	)

	jwtConfig := auth.JWTConfig{Issuer: cfg.Issuer, Audience: cfg.Audience, Leeway: 30 * time.Second}
	switch {
	case cfg.JWTSecret != "":
		chain = append(chain, auth.NewJWTAuthenticator(jwtConfig, auth.NewStaticKeyProvider([]byte(cfg.JWTSecret))))
	case cfg.JWKSURL != "":
		breaker = resilience.NewBreaker(resilience.BreakerConfig{
			OnStateChange: func(from, to resilience.State) {
				logger.Warn(context.Background(), "jwks circuit state changed",
					observe.F("from", from.String()),
					observe.F("to", to.String()),
				)
			},
		})
		keys := auth.NewJWKSProvider(auth.JWKSConfig{
			URL: cfg.JWKSURL,
			Guard: resilience.Guard{
				Breaker: breaker,
				Retry:   resilience.NewRetry(resilience.RetryConfig{Jitter: true}),
			},
		})
		chain = append(chain, auth.NewJWTAuthenticator(jwtConfig, keys))
	}

	if len(cfg.APIKeys) > 0 {
		keys := auth.NewMemoryAPIKeyStore()
		for _, k := range cfg.APIKeys {
			keys.Add(k.Key, auth.APIKeyInfo{ID: k.ID, Principal: k.Principal})
		}
		chain = append(chain, auth.NewAPIKeyAuthenticator("", keys))
	}

	if len(chain) == 0 {
		return nil, breaker
	}
	return auth.NewCompositeAuthenticator(chain...), breaker
}

// routes builds the HTTP handler. Probes and metrics sit outside the
// response cache; everything under /api goes through it after
// authentication has set the caller identity. Routes that change or empty
// the cache require an authenticated caller.
func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.httpMW.Wrap())

	health.Mount(r, a.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		authLogger := a.logger.With(observe.F("component", "auth"))
		r.Use(auth.Middleware(a.authn, authLogger))
		r.Use(a.cacheMW.Wrap())

		r.Get("/v1/subjects", a.listSubjects)
		r.Get("/auth/google/config", a.googleConfig)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity(authLogger))
			r.Post("/v1/subjects", a.createSubject)
			r.Delete("/cache", a.clearCache)
		})
	})
	return r
}
