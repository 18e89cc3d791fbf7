package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// APIKeyInfo describes a registered API key. The key itself is never stored.
type APIKeyInfo struct {
	ID        string
	Principal string

	// ExpiresAt is zero for keys that never expire.
	ExpiresAt time.Time

	Metadata map[string]any
}

// APIKeyStore looks up keys by their SHA-256 hex digest.
type APIKeyStore interface {
	// Lookup returns nil, nil when the hash is unknown.
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates keys sent in a request header.
type APIKeyAuthenticator struct {
	header string
	store  APIKeyStore
	now    func() time.Time
}

// NewAPIKeyAuthenticator reads keys from header (default "X-API-Key").
func NewAPIKeyAuthenticator(header string, store APIKeyStore) *APIKeyAuthenticator {
	if header == "" {
		header = "X-API-Key"
	}
	return &APIKeyAuthenticator{
		header: http.CanonicalHeaderKey(header),
		store:  store,
		now:    time.Now,
	}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return "api_key"
}

// Supports reports whether the key header is present.
func (a *APIKeyAuthenticator) Supports(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get(a.header)) != ""
}

// Authenticate resolves the key to its owner.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	key := strings.TrimSpace(r.Header.Get(a.header))
	if key == "" {
		return nil, ErrMissingCredentials
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("auth: api key lookup: %w", err)
	}
	if info == nil {
		return nil, ErrInvalidCredentials
	}
	if !info.ExpiresAt.IsZero() && a.now().After(info.ExpiresAt) {
		return nil, fmt.Errorf("%w: api key %s", ErrTokenExpired, info.ID)
	}

	id := &Identity{
		Principal: info.Principal,
		Method:    AuthMethodAPIKey,
		ExpiresAt: info.ExpiresAt,
		Claims:    make(map[string]any, len(info.Metadata)+1),
	}
	for k, v := range info.Metadata {
		id.Claims[k] = v
	}
	id.Claims["key_id"] = info.ID
	return id, nil
}

// HashAPIKey returns the SHA-256 hex digest under which a key is stored.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore holds API keys in memory.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKeyInfo
}

// NewMemoryAPIKeyStore creates an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]APIKeyInfo)}
}

// Lookup implements APIKeyStore.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.keys[keyHash]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Add registers rawKey for info. Only its hash is retained.
func (s *MemoryAPIKeyStore) Add(rawKey string, info APIKeyInfo) {
	s.mu.Lock()
	s.keys[HashAPIKey(rawKey)] = info
	s.mu.Unlock()
}

// Remove revokes rawKey.
func (s *MemoryAPIKeyStore) Remove(rawKey string) {
	s.mu.Lock()
	delete(s.keys, HashAPIKey(rawKey))
	s.mu.Unlock()
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
