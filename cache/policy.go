package cache

import "time"

// TTLPolicy maps exact request paths to a time-to-live.
type TTLPolicy struct {
	// Default applies to every path not listed in Routes.
	Default time.Duration

	// Routes holds per-path TTLs. Keys are matched exactly against the
	// request path; the query string is never part of the match.
	Routes map[string]time.Duration
}

// DefaultTTLPolicy returns the stock policy: five minutes for everything,
// thirty minutes for the OAuth client configuration which almost never
// changes.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Default: 5 * time.Minute,
		Routes: map[string]time.Duration{
			"/api/auth/google/config": 30 * time.Minute,
		},
	}
}

// TTL returns the time-to-live for routePath.
func (p TTLPolicy) TTL(routePath string) time.Duration {
	if ttl, ok := p.Routes[routePath]; ok {
		return ttl
	}
	return p.Default
}

// With returns a copy of p with routePath set to ttl.
func (p TTLPolicy) With(routePath string, ttl time.Duration) TTLPolicy {
	routes := make(map[string]time.Duration, len(p.Routes)+1)
	for k, v := range p.Routes {
		routes[k] = v
	}
	routes[routePath] = ttl
	p.Routes = routes
	return p
}
