// Package config loads the respcache server configuration from YAML.
//
// Every value may reference environment variables as ${NAME}. A reference to
// an unset variable is an error rather than an empty string, so a missing
// secret fails at startup instead of producing a server that rejects every
// token. Write $$ for a literal dollar sign.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/observe"
)

var (
	ErrInvalidConfig = errors.New("config: invalid")
	ErrReadConfig    = errors.New("config: read failed")
)

// Config is the root of the configuration file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Auth    AuthConfig    `yaml:"auth"`
	Observe ObserveConfig `yaml:"observe"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// DefaultTTL applies to paths without an entry in Routes.
	DefaultTTL Duration `yaml:"default_ttl"`

	// Routes maps exact request paths to their TTL.
	Routes map[string]Duration `yaml:"routes"`

	// Exclusions are path substrings that are never cached.
	Exclusions []string `yaml:"exclusions"`

	// ReplayHeaders lists response headers stored and replayed on a hit.
	ReplayHeaders []string `yaml:"replay_headers"`

	// WarnEntries marks the cache degraded above this many entries. 0 disables.
	WarnEntries int `yaml:"warn_entries"`

	// HeapLimitMB is the heap size the heap health check measures against.
	HeapLimitMB int `yaml:"heap_limit_mb"`
}

// AuthConfig configures request authentication. With neither JWTSecret nor
// JWKSURL set and no API keys, every request is anonymous.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWKSURL   string `yaml:"jwks_url"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`

	// GoogleClientID is published by GET /api/auth/google/config.
	GoogleClientID string `yaml:"google_client_id"`

	APIKeys []APIKey `yaml:"api_keys"`
}

type APIKey struct {
	ID        string `yaml:"id"`
	Key       string `yaml:"key"`
	Principal string `yaml:"principal"`
}

type ObserveConfig struct {
	ServiceName string `yaml:"service_name"`
	Version     string `yaml:"version"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	Tracing struct {
		Enabled   bool    `yaml:"enabled"`
		Exporter  string  `yaml:"exporter"`
		SamplePct float64 `yaml:"sample_pct"`
	} `yaml:"tracing"`

	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	policy := cache.DefaultTTLPolicy()
	routes := make(map[string]Duration, len(policy.Routes))
	for path, ttl := range policy.Routes {
		routes[path] = Duration(ttl)
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Cache: CacheConfig{
			DefaultTTL:    Duration(policy.Default),
			Routes:        routes,
			Exclusions:    []string{"/api/auth/session", "/api/cache"},
			ReplayHeaders: append([]string(nil), cache.DefaultReplayHeaders...),
			WarnEntries:   50000,
			HeapLimitMB:   512,
		},
		Observe: ObserveConfig{
			ServiceName: "respcache",
			LogLevel:    "info",
		},
	}
	cfg.Observe.Tracing.Exporter = "stdout"
	cfg.Observe.Tracing.SamplePct = 1
	cfg.Observe.Metrics.Exporter = "prometheus"
	return cfg
}

// Load reads path, expands environment references and decodes it over
// Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return Parse(raw)
}

// Parse decodes YAML data over Default and validates the result.
func Parse(data []byte) (Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, errors.New("cache.default_ttl must be positive"))
	}
	for path, ttl := range c.Cache.Routes {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("cache.routes: %q must start with /", path))
		}
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("cache.routes[%s]: ttl must be positive", path))
		}
	}
	if c.Cache.WarnEntries < 0 {
		errs = append(errs, errors.New("cache.warn_entries must not be negative"))
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWKSURL != "" {
		errs = append(errs, errors.New("auth: set jwt_secret or jwks_url, not both"))
	}
	seen := make(map[string]bool, len(c.Auth.APIKeys))
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" || k.Principal == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key and principal are required", i))
		}
		if seen[k.Key] {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d]: duplicate key", i))
		}
		seen[k.Key] = true
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// TTLPolicy converts the cache section into a cache.TTLPolicy.
func (c Config) TTLPolicy() cache.TTLPolicy {
	routes := make(map[string]time.Duration, len(c.Cache.Routes))
	for path, ttl := range c.Cache.Routes {
		routes[path] = time.Duration(ttl)
	}
	return cache.TTLPolicy{Default: time.Duration(c.Cache.DefaultTTL), Routes: routes}
}

// ObserveConfig converts the observe section into an observe.Config.
func (c Config) ObserveConfig() observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     o.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   o.LogLevel,
			Pretty:  o.LogPretty,
		},
	}
}
