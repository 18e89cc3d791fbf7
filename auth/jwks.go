package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/respcache/resilience"
)

// JWKSConfig configures a JWKSProvider.
type JWKSConfig struct {
	// URL of the JSON Web Key Set, e.g. https://www.googleapis.com/oauth2/v3/certs.
	URL string

	// RefreshInterval is how long a fetched key set is trusted.
	// Default: 1 hour
	RefreshInterval time.Duration

	// MinRefreshInterval throttles refetches triggered by an unknown kid.
	// Default: 1 minute
	MinRefreshInterval time.Duration

	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client

	// Guard wraps each fetch, typically a resilience.Guard with retry and a
	// circuit breaker. Nil fetches once per refresh.
	Guard resilience.Executor
}

type keySet struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// JWKSProvider serves RSA verification keys from a remote key set.
//
// Keys are fetched on demand and reused until RefreshInterval elapses.
// Concurrent refreshes collapse into one request. When a refresh fails the
// last good key set keeps serving.
type JWKSProvider struct {
	config JWKSConfig
	now    func() time.Time

	mu          sync.RWMutex
	set         keySet
	lastAttempt time.Time

	group singleflight.Group
}

// NewJWKSProvider creates a provider for config.URL. Nothing is fetched until
// the first GetKey.
func NewJWKSProvider(config JWKSConfig) *JWKSProvider {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = time.Hour
	}
	if config.MinRefreshInterval <= 0 {
		config.MinRefreshInterval = time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSProvider{config: config, now: time.Now}
}

// GetKey returns the public key for keyID. An empty keyID matches the key set
// only when it holds exactly one key.
func (p *JWKSProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	p.mu.RLock()
	set := p.set
	stale := p.now().Sub(set.fetchedAt) > p.config.RefreshInterval
	throttled := p.now().Sub(p.lastAttempt) < p.config.MinRefreshInterval
	p.mu.RUnlock()

	key, found := set.lookup(keyID)
	if found && (!stale || throttled) {
		return key, nil
	}
	if throttled {
		if set.keys == nil {
			return nil, fmt.Errorf("%w: retrying after %s", ErrKeySourceUnavailable, p.config.MinRefreshInterval)
		}
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, keyID)
	}

	refreshed, err := p.refresh(ctx)
	if err != nil {
		if found {
			return key, nil
		}
		return nil, err
	}
	if key, ok := refreshed.lookup(keyID); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, keyID)
}

func (s keySet) lookup(keyID string) (*rsa.PublicKey, bool) {
	if keyID == "" {
		if len(s.keys) != 1 {
			return nil, false
		}
		for _, k := range s.keys {
			return k, true
		}
	}
	k, ok := s.keys[keyID]
	return k, ok
}

func (p *JWKSProvider) refresh(ctx context.Context) (keySet, error) {
	v, err, _ := p.group.Do("jwks", func() (any, error) {
		p.mu.Lock()
		p.lastAttempt = p.now()
		p.mu.Unlock()

		var keys map[string]*rsa.PublicKey
		fetch := func(ctx context.Context) error {
			var err error
			keys, err = p.fetch(ctx)
			return err
		}
		var err error
		if p.config.Guard != nil {
			err = p.config.Guard.Execute(ctx, fetch)
		} else {
			err = fetch(ctx)
		}
		if err != nil {
			return nil, errors.Join(ErrKeySourceUnavailable, err)
		}

		set := keySet{keys: keys, fetchedAt: p.now()}
		p.mu.Lock()
		p.set = set
		p.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return keySet{}, err
	}
	return v.(keySet), nil
}

func (p *JWKSProvider) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("jwks: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: unexpected status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("jwks: decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks: no usable RSA signing keys")
	}
	return keys, nil
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil || len(n) == 0 {
		return nil, fmt.Errorf("jwks: bad modulus for kid %q", k.Kid)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil || len(e) == 0 || len(e) > 4 {
		return nil, fmt.Errorf("jwks: bad exponent for kid %q", k.Kid)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

var _ KeyProvider = (*JWKSProvider)(nil)
