package cache

import (
	"context"
	"fmt"

	"github.com/jonwraymond/respcache/health"
)

// StoreChecker reports the size of a Store as a health check.
//
// The store has no capacity bound, so the checker is the only signal that it
// is growing. It reports Degraded once the entry count exceeds the warning
// threshold and Healthy otherwise. A threshold of zero disables the warning.
type StoreChecker struct {
	store       *Store
	warnEntries int
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(store *Store, warnEntries int) *StoreChecker {
	if warnEntries < 0 {
		warnEntries = 0
	}
	return &StoreChecker{store: store, warnEntries: warnEntries}
}

// Name returns "response-cache".
func (c *StoreChecker) Name() string {
	return "response-cache"
}

// Check reports the current entry count.
func (c *StoreChecker) Check(ctx context.Context) health.Result {
	select {
	case <-ctx.Done():
		return health.Unhealthy("context cancelled", ctx.Err())
	default:
	}

	n := c.store.Len()
	details := map[string]any{
		"entries":      n,
		"warn_entries": c.warnEntries,
	}

	if c.warnEntries > 0 && n > c.warnEntries {
		return health.Degraded(fmt.Sprintf("cache holds %d entries (warning at %d)", n, c.warnEntries)).
			WithDetails(details)
	}
	return health.Healthy(fmt.Sprintf("cache holds %d entries", n)).WithDetails(details)
}
