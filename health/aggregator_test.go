package health

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func fixed(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		text, _ := tt.status.MarshalText()
		if string(text) != tt.want {
			t.Errorf("MarshalText() = %q, want %q", text, tt.want)
		}
	}

	if StatusHealthy.Worse(StatusDegraded) != StatusDegraded {
		t.Error("degraded is worse than healthy")
	}
	if StatusUnhealthy.Worse(StatusDegraded) != StatusUnhealthy {
		t.Error("unhealthy is worse than degraded")
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"one unhealthy", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.results); got != tt.want {
				t.Errorf("Overall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register("cache", fixed("cache", Degraded("big")))
	agg.Register("heap", fixed("heap", Healthy("fine")))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results["cache"].Status != StatusDegraded || results["heap"].Status != StatusHealthy {
		t.Errorf("results = %+v", results)
	}
	if results["heap"].Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if got := agg.Names(); len(got) != 2 || got[0] != "cache" || got[1] != "heap" {
		t.Errorf("Names() = %v", got)
	}
}

func TestAggregator_RegisterReplaces(t *testing.T) {
	agg := NewAggregator()
	agg.Register("a", fixed("a", Unhealthy("down", nil)))
	agg.Register("a", fixed("a", Healthy("up")))

	if n := len(agg.Names()); n != 1 {
		t.Errorf("Names() len = %d, want 1", n)
	}
	res, err := agg.Check(context.Background(), "a")
	if err != nil || res.Status != StatusHealthy {
		t.Errorf("Check = %+v, %v", res, err)
	}
}

func TestAggregator_CheckUnknown(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "nope")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("err = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register("slow", NewCheckerFunc("slow", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return Healthy("late")
	}))

	res := agg.CheckAll(context.Background())["slow"]
	if res.Status != StatusUnhealthy || !errors.Is(res.Error, ErrCheckTimeout) {
		t.Errorf("result = %+v, want timeout", res)
	}
}

func TestAggregator_MaxConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	check := func(ctx context.Context) Result {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return Healthy("")
	}

	agg := NewAggregator(AggregatorConfig{MaxConcurrency: 2})
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		agg.Register(name, NewCheckerFunc(name, check))
	}
	if got := len(agg.CheckAll(context.Background())); got != 5 {
		t.Fatalf("results = %d, want 5", got)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestHeapChecker(t *testing.T) {
	tests := []struct {
		name      string
		heapAlloc uint64
		want      Status
	}{
		{"normal", 100, StatusHealthy},
		{"warning", 850, StatusDegraded},
		{"critical", 990, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeapChecker(HeapCheckerConfig{Limit: 1000})
			h.readMem = func(m *runtime.MemStats) { m.HeapAlloc = tt.heapAlloc }

			res := h.Check(context.Background())
			if res.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", res.Status, tt.want, res.Message)
			}
			if res.Details["limit_bytes"] != uint64(1000) {
				t.Errorf("limit_bytes = %v", res.Details["limit_bytes"])
			}
		})
	}
}

func TestHeapChecker_Defaults(t *testing.T) {
	h := NewHeapChecker(HeapCheckerConfig{Warning: 2, Critical: -1})
	if h.config.Warning != 0.8 || h.config.Critical != 0.95 {
		t.Errorf("config = %+v", h.config)
	}
	if h.Name() != "heap" {
		t.Errorf("Name() = %q", h.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := h.Check(ctx); res.Status != StatusUnhealthy {
		t.Errorf("cancelled: Status = %v", res.Status)
	}
}
