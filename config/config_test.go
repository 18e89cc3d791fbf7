package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}

	p := cfg.TTLPolicy()
	if p.TTL("/api/v1/subjects") != 5*time.Minute {
		t.Errorf("default TTL = %v", p.TTL("/api/v1/subjects"))
	}
	if p.TTL("/api/auth/google/config") != 30*time.Minute {
		t.Errorf("google config TTL = %v", p.TTL("/api/auth/google/config"))
	}
}

func TestParse(t *testing.T) {
	t.Setenv("RC_JWT_SECRET", "topsecret")

	cfg, err := Parse([]byte(`
server:
  addr: ":9090"
cache:
  default_ttl: 90s
  routes:
    /api/v1/subjects: 1m
  exclusions: ["/api/auth/session"]
auth:
  jwt_secret: ${RC_JWT_SECRET}
  issuer: respcache
  api_keys:
    - id: ci
      key: k-1
      principal: ci-bot
observe:
  log_level: debug
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != Duration(10*time.Second) {
		t.Errorf("ShutdownTimeout = %v, want default kept", cfg.Server.ShutdownTimeout)
	}
	if cfg.Cache.DefaultTTL != Duration(90*time.Second) {
		t.Errorf("DefaultTTL = %v", cfg.Cache.DefaultTTL)
	}
	if got := cfg.TTLPolicy().TTL("/api/v1/subjects"); got != time.Minute {
		t.Errorf("subjects TTL = %v", got)
	}
	if cfg.Auth.JWTSecret != "topsecret" {
		t.Errorf("JWTSecret = %q, want expanded", cfg.Auth.JWTSecret)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].Principal != "ci-bot" {
		t.Errorf("APIKeys = %+v", cfg.Auth.APIKeys)
	}
	if oc := cfg.ObserveConfig(); oc.Logging.Level != "debug" || oc.ServiceName != "respcache" {
		t.Errorf("ObserveConfig = %+v", oc)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "unknown key", yaml: "cache:\n  ttl: 5m\n", wantErr: "ttl"},
		{name: "bad duration", yaml: "cache:\n  default_ttl: soon\n", wantErr: "soon"},
		{name: "non positive ttl", yaml: "cache:\n  default_ttl: 0s\n", wantErr: "default_ttl"},
		{name: "relative route", yaml: "cache:\n  routes:\n    api/x: 1m\n", wantErr: "must start with /"},
		{name: "missing env", yaml: "auth:\n  jwt_secret: ${RC_DEFINITELY_UNSET}\n", wantErr: "RC_DEFINITELY_UNSET"},
		{name: "two key sources", yaml: "auth:\n  jwt_secret: a\n  jwks_url: https://example.com/certs\n", wantErr: "not both"},
		{name: "api key without principal", yaml: "auth:\n  api_keys:\n    - key: k\n", wantErr: "principal"},
		{name: "bad log level", yaml: "observe:\n  log_level: loud\n", wantErr: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Cache.WarnEntries = -1

	err := cfg.Validate()
	for _, want := range []string{"server.addr", "warn_entries"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("err = %v, want it to mention %s", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "respcache.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":7070\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrReadConfig) {
		t.Errorf("missing file: err = %v, want ErrReadConfig", err)
	}
}
