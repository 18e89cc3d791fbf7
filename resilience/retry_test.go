package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// noSleep records requested waits without blocking.
func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})
	if r.config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", r.config.MaxAttempts)
	}
	if r.config.BaseDelay != 100*time.Millisecond || r.config.MaxDelay != 5*time.Second {
		t.Errorf("delays = %v/%v", r.config.BaseDelay, r.config.MaxDelay)
	}
}

func TestRetry_Execute(t *testing.T) {
	errFlaky := errors.New("flaky")
	errFatal := errors.New("fatal")

	tests := []struct {
		name         string
		failures     int
		failWith     error
		wantAttempts int
		wantErr      error
	}{
		{name: "first try", failures: 0, wantAttempts: 1},
		{name: "succeeds on third", failures: 2, failWith: errFlaky, wantAttempts: 3},
		{name: "exhausted", failures: 10, failWith: errFlaky, wantAttempts: 3, wantErr: ErrRetriesExhausted},
		{name: "non retryable", failures: 10, failWith: errFatal, wantAttempts: 1, wantErr: errFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var waits []time.Duration
			r := NewRetry(RetryConfig{
				MaxAttempts: 3,
				RetryIf:     func(err error) bool { return !errors.Is(err, errFatal) },
			})
			r.sleep = noSleep(&waits)

			attempts := 0
			err := r.Execute(context.Background(), func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == ErrRetriesExhausted && !errors.Is(err, errFlaky) {
				t.Error("exhausted error should wrap the last failure")
			}
			if len(waits) != max(tt.wantAttempts-1, 0) && tt.wantErr != errFatal {
				t.Errorf("waits = %v", waits)
			}
		})
	}
}

func TestRetry_Backoff(t *testing.T) {
	r := NewRetry(RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond})

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := r.delay(i + 1); got != w {
			t.Errorf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestRetry_Jitter(t *testing.T) {
	r := NewRetry(RetryConfig{BaseDelay: 100 * time.Millisecond, Jitter: true})
	for i := 0; i < 100; i++ {
		d := r.delay(1)
		if d < 50*time.Millisecond || d > 100*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 100ms]", d)
		}
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Execute(ctx, func(context.Context) error {
			attempts++
			return errors.New("down")
		})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after cancel")
	}
}
