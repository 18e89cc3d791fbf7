package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStore_GetSetDelete(t *testing.T) {
	store := NewStore(DefaultTTLPolicy())
	ctx := context.Background()

	if _, ok := store.Get(ctx, "missing", "/x"); ok {
		t.Error("Get on empty store should report absent")
	}

	key := Key("GET", "/api/v1/subjects", AnonymousIdentity)
	payload := []byte(`[{"id":1}]`)
	headers := map[string]string{"Content-Type": "application/json"}
	store.Set(ctx, key, payload, "/api/v1/subjects", headers)

	entry, ok := store.Get(ctx, key, "/api/v1/subjects")
	if !ok {
		t.Fatal("Get after Set should report present")
	}
	if !bytes.Equal(entry.Payload, payload) {
		t.Errorf("Payload = %q, want %q", entry.Payload, payload)
	}
	if got := entry.Headers["Content-Type"]; got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if entry.Route != "/api/v1/subjects" {
		t.Errorf("Route = %q, want /api/v1/subjects", entry.Route)
	}

	store.Delete(ctx, key)
	if _, ok := store.Get(ctx, key, "/api/v1/subjects"); ok {
		t.Error("Get after Delete should report absent")
	}

	// Delete of a missing key is a no-op.
	store.Delete(ctx, "nonexistent")
}

func TestStore_SetReplaces(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTLPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	store.Set(ctx, "k", []byte("v1"), "/a", nil)
	clock.Advance(time.Minute)
	store.Set(ctx, "k", []byte("v2"), "/a", nil)

	entry, ok := store.Get(ctx, "k", "/a")
	if !ok {
		t.Fatal("expected entry")
	}
	if string(entry.Payload) != "v2" {
		t.Errorf("Payload = %q, want v2", entry.Payload)
	}
	if !entry.CapturedAt.Equal(clock.Now()) {
		t.Errorf("CapturedAt = %v, want %v", entry.CapturedAt, clock.Now())
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStore_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTLPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	store.Set(ctx, "k", []byte("v"), "/a", nil)

	// Exactly at the TTL the entry is still fresh.
	clock.Advance(5 * time.Minute)
	if _, ok := store.Get(ctx, "k", "/a"); !ok {
		t.Fatal("entry should be fresh at age == TTL")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := store.Get(ctx, "k", "/a"); ok {
		t.Fatal("entry should be expired past TTL")
	}
	if store.Len() != 0 {
		t.Errorf("expired entry should be deleted, Len() = %d", store.Len())
	}

	// A second read stays absent.
	if _, ok := store.Get(ctx, "k", "/a"); ok {
		t.Error("second Get after expiry should report absent")
	}
}

func TestStore_ExpiredEntryStaysUntilRead(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTLPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	store.Set(ctx, "k", []byte("v"), "/a", nil)
	clock.Advance(time.Hour)

	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1 before any read", store.Len())
	}
}

func TestStore_TTLFromReaderRoute(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTLPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	// Written under the long-lived route, read back under a default route.
	store.Set(ctx, "k", []byte("v"), "/api/auth/google/config", nil)
	clock.Advance(10 * time.Minute)

	if _, ok := store.Get(ctx, "k", "/api/v1/subjects"); ok {
		t.Error("TTL must come from the reader's route (5m), entry is 10m old")
	}
}

func TestStore_GoogleConfigScenario(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTLPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	const route = "/api/auth/google/config"
	key := Key("GET", route, AnonymousIdentity)
	store.Set(ctx, key, []byte(`{"clientId":"abc"}`), route, nil)

	clock.Advance(29 * time.Minute)
	if _, ok := store.Get(ctx, key, route); !ok {
		t.Fatal("29 minutes should be within the 30 minute TTL")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := store.Get(ctx, key, route); ok {
		t.Fatal("31 minutes should be past the 30 minute TTL")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(DefaultTTLPolicy())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), "/a", nil)
	}

	if removed := store.Clear(ctx); removed != 10 {
		t.Errorf("Clear() = %d, want 10", removed)
	}
	for i := 0; i < 10; i++ {
		if _, ok := store.Get(ctx, fmt.Sprintf("k%d", i), "/a"); ok {
			t.Errorf("k%d present after Clear", i)
		}
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestStore_CopyIsolation(t *testing.T) {
	store := NewStore(DefaultTTLPolicy())
	ctx := context.Background()

	payload := []byte("original")
	headers := map[string]string{"Content-Type": "text/plain"}
	store.Set(ctx, "k", payload, "/a", headers)

	// Mutating the caller's inputs must not reach the store.
	payload[0] = 'X'
	headers["Content-Type"] = "changed"

	entry, _ := store.Get(ctx, "k", "/a")
	if string(entry.Payload) != "original" {
		t.Errorf("Payload = %q, want original", entry.Payload)
	}
	if entry.Headers["Content-Type"] != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", entry.Headers["Content-Type"])
	}

	// Mutating a returned entry must not reach the store either.
	entry.Payload[0] = 'Y'
	entry.Headers["Content-Type"] = "changed"

	again, _ := store.Get(ctx, "k", "/a")
	if string(again.Payload) != "original" {
		t.Errorf("Payload after mutation = %q, want original", again.Payload)
	}
	if again.Headers["Content-Type"] != "text/plain" {
		t.Errorf("Content-Type after mutation = %q", again.Headers["Content-Type"])
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(DefaultTTLPolicy())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%10)
			store.Set(ctx, key, []byte(key), "/a", map[string]string{"Content-Type": "text/plain"})
			if entry, ok := store.Get(ctx, key, "/a"); ok && string(entry.Payload) != key {
				t.Errorf("Get(%s) = %q", key, entry.Payload)
			}
			if n%25 == 0 {
				store.Clear(ctx)
			}
			store.Delete(ctx, key)
			_ = store.Len()
		}(i)
	}
	wg.Wait()
}

func TestStore_ExpiryDoesNotDropFreshReplacement(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(DefaultTTLPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	store.Set(ctx, "k", []byte("old"), "/a", nil)
	clock.Advance(10 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Get(ctx, "k", "/a")
		}()
		go func() {
			defer wg.Done()
			store.Set(ctx, "k", []byte("new"), "/a", nil)
		}()
	}
	wg.Wait()

	// Every Set wrote a fresh value. A Get that saw the stale entry may only
	// delete it if it is still stale under the write lock.
	entry, ok := store.Get(ctx, "k", "/a")
	if !ok || string(entry.Payload) != "new" {
		t.Errorf("Get = %q, %v; want new, true", entry.Payload, ok)
	}
}
