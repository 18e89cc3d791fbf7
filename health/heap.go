package health

import (
	"context"
	"fmt"
	"runtime"
)

// HeapCheckerConfig configures a HeapChecker.
type HeapCheckerConfig struct {
	// Limit is the heap size, in bytes, the thresholds are measured against.
	// Zero uses the memory obtained from the OS, which is a weak signal.
	Limit uint64

	// Warning and Critical are fractions of Limit.
	// Defaults: 0.8 and 0.95
	Warning  float64
	Critical float64
}

// HeapChecker reports live heap usage. In this service the response cache is
// the main heap consumer and has no eviction, so heap pressure is the
// earliest sign of trouble.
type HeapChecker struct {
	config  HeapCheckerConfig
	readMem func(*runtime.MemStats)
}

// NewHeapChecker creates a heap checker. Out-of-range fractions fall back to
// the defaults.
func NewHeapChecker(config HeapCheckerConfig) *HeapChecker {
	if config.Warning <= 0 || config.Warning >= 1 {
		config.Warning = 0.8
	}
	if config.Critical <= 0 || config.Critical >= 1 {
		config.Critical = 0.95
	}
	if config.Critical < config.Warning {
		config.Critical = config.Warning
	}
	return &HeapChecker{config: config, readMem: runtime.ReadMemStats}
}

// Name returns "heap".
func (h *HeapChecker) Name() string {
	return "heap"
}

// Check compares HeapAlloc against the configured limit.
func (h *HeapChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	h.readMem(&stats)

	limit := h.config.Limit
	if limit == 0 {
		limit = stats.Sys
	}
	if limit == 0 {
		return Healthy("heap stats unavailable")
	}

	ratio := float64(stats.HeapAlloc) / float64(limit)
	details := map[string]any{
		"heap_alloc_bytes": stats.HeapAlloc,
		"heap_objects":     stats.HeapObjects,
		"limit_bytes":      limit,
		"usage_percent":    ratio * 100,
		"num_gc":           stats.NumGC,
		"goroutines":       runtime.NumGoroutine(),
	}

	switch {
	case ratio >= h.config.Critical:
		return Unhealthy(fmt.Sprintf("heap usage critical: %.1f%%", ratio*100), ErrCheckFailed).WithDetails(details)
	case ratio >= h.config.Warning:
		return Degraded(fmt.Sprintf("heap usage high: %.1f%%", ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("heap usage %.1f%%", ratio*100)).WithDetails(details)
	}
}
