// Command respcache serves a small JSON API behind the in-memory response
// cache, with authentication, health probes and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonwraymond/respcache/config"
	"github.com/jonwraymond/respcache/observe"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (defaults are used when empty)")
		addr       = flag.String("addr", "", "listen address, overrides server.addr")
	)
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "respcache: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	logger := obs.Logger()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "telemetry shutdown", observe.F("error", err))
		}
	}()

	app, err := newApp(cfg, obs)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", observe.F("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down", observe.F("entries", app.store.Len()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
