package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/respcache/observe"
)

// Store is a concurrency-safe in-memory map of cache keys to entries.
//
// Expiry is lazy. Get compares the entry's age against the TTL of the
// routePath the caller supplies and removes the entry when it is too old.
// Nothing else ever evicts entries; the map grows until Clear is called.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	policy  TTLPolicy
	now     func() time.Time
	metrics observe.CacheMetrics
	logger  observe.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now. Tests use it to move time forward.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics records expirations and clears to m.
func WithMetrics(m observe.CacheMetrics) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l observe.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store using policy for TTL resolution.
func NewStore(policy TTLPolicy, opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]Entry),
		policy:  policy,
		now:     time.Now,
		metrics: observe.NopCacheMetrics(),
		logger:  observe.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the TTL policy the store was built with.
func (s *Store) Policy() TTLPolicy {
	return s.policy
}

// Get returns a copy of the entry for key if it is still fresh for routePath.
// An expired entry is removed and reported as absent.
func (s *Store) Get(ctx context.Context, key, routePath string) (Entry, bool) {
	ttl := s.policy.TTL(routePath)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}

	if entry.Age(s.now()) <= ttl {
		return entry.clone(), true
	}

	// Re-check under the write lock: a concurrent Set may have replaced the
	// stale entry with a fresh one since the read above.
	s.mu.Lock()
	current, ok := s.entries[key]
	if ok && current.Age(s.now()) > ttl {
		delete(s.entries, key)
		s.mu.Unlock()
		s.metrics.RecordExpiration(ctx, current.Route)
		s.logger.Debug(ctx, "cache entry expired",
			observe.F("key", key),
			observe.F("route", routePath),
			observe.F("ttl", ttl.String()),
		)
		return Entry{}, false
	}
	s.mu.Unlock()

	if !ok {
		return Entry{}, false
	}
	return current.clone(), true
}

// Set stores payload and headers under key, stamped with the current time.
// An existing entry for key is replaced. The store keeps its own copies.
func (s *Store) Set(ctx context.Context, key string, payload []byte, routePath string, headers map[string]string) {
	entry := Entry{
		Payload:    append([]byte(nil), payload...),
		CapturedAt: s.now(),
		Headers:    cloneHeaders(headers),
		Route:      routePath,
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	s.logger.Debug(ctx, "cache entry stored",
		observe.F("key", key),
		observe.F("route", routePath),
		observe.F("bytes", len(payload)),
	)
}

// Delete removes the entry for key, if any.
func (s *Store) Delete(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes every entry and returns how many were dropped.
func (s *Store) Clear(ctx context.Context) int {
	s.mu.Lock()
	removed := len(s.entries)
	s.entries = make(map[string]Entry)
	s.mu.Unlock()

	s.metrics.RecordClear(ctx, removed)
	s.logger.Info(ctx, "cache cleared", observe.F("removed", removed))
	return removed
}

// Len returns the number of stored entries, including expired ones that have
// not been read since they went stale.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
