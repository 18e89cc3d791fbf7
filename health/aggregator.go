package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds a full CheckAll run.
	// Default: 5 seconds
	Timeout time.Duration

	// MaxConcurrency caps how many checks run at once. Zero means no cap.
	MaxConcurrency int
}

// Aggregator runs registered checkers and folds their results.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an empty aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds or replaces the checker under name.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.checkers[name]; !ok {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Names returns registered checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs the checker registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return run(ctx, checker), nil
}

// CheckAll runs every checker concurrently and returns results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make(map[string]Checker, len(a.checkers))
	for name, c := range a.checkers {
		checkers[name] = c
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if a.config.MaxConcurrency > 0 {
		g.SetLimit(a.config.MaxConcurrency)
	}
	for name, c := range checkers {
		g.Go(func() error {
			res := run(ctx, c)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Overall folds results into the most severe status. No results is healthy.
func Overall(results map[string]Result) Status {
	status := StatusHealthy
	for _, r := range results {
		status = status.Worse(r.Status)
	}
	return status
}

// run executes checker and gives up when ctx expires. A checker that ignores
// its context keeps running in the background; its result is discarded.
func run(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- checker.Check(ctx)
	}()

	select {
	case res := <-done:
		res.Duration = time.Since(start)
		if res.Timestamp.IsZero() {
			res.Timestamp = start
		}
		return res
	case <-ctx.Done():
		res := Unhealthy("check timed out", ErrCheckTimeout)
		res.Duration = time.Since(start)
		return res
	}
}
