package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Executor runs an operation under some policy.
type Executor interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts counts the first call. Default: 3
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; each further wait
	// doubles up to MaxDelay. Defaults: 100ms and 5s
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter randomizes each wait to between half and all of its nominal value.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: every non-nil error.
	RetryIf func(err error) bool
}

// Retry re-runs failing operations with capped exponential backoff.
type Retry struct {
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetry creates a Retry, filling unset fields with defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{config: config, sleep: sleepCtx}
}

// Execute calls op until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}
		if serr := r.sleep(ctx, r.delay(attempt)); serr != nil {
			return serr
		}
	}
}

// delay returns the wait after the given failed attempt (1-based).
func (r *Retry) delay(attempt int) time.Duration {
	d := r.config.BaseDelay
	for i := 1; i < attempt && d < r.config.MaxDelay; i++ {
		d *= 2
	}
	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	if r.config.Jitter && d > 1 {
		half := d / 2
		// #nosec G404 -- timing jitter, not security sensitive.
		d = half + time.Duration(rand.Int64N(int64(half)+1))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
