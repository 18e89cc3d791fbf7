package cache

import (
	"net/http"
	"strings"

	"github.com/jonwraymond/respcache/auth"
)

// AnonymousIdentity is the identity token used in keys for requests without
// an authenticated caller.
const AnonymousIdentity = auth.AnonymousPrincipal

// Key builds the cache key for a request.
// Format: <METHOD>:<path?query>:<identity>
//
// Example:
//
//	GET:/api/v1/subjects?page=2:anonymous
//
// An empty identity is replaced with AnonymousIdentity. Each segment has
// "%" and ":" percent-encoded, so distinct (method, requestURI, identity)
// triples never produce the same key.
func Key(method, requestURI, identity string) string {
	if identity == "" {
		identity = AnonymousIdentity
	}
	return keyEscaper.Replace(method) + ":" + keyEscaper.Replace(requestURI) + ":" + keyEscaper.Replace(identity)
}

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// RequestKey builds the key for r using identity to resolve the caller.
func RequestKey(r *http.Request, identity IdentityFunc) string {
	if identity == nil {
		identity = PrincipalIdentity
	}
	return Key(r.Method, r.URL.RequestURI(), identity(r))
}

// IdentityFunc returns the caller identity token for a request.
// Returning "" means unauthenticated.
type IdentityFunc func(r *http.Request) string

// PrincipalIdentity reads the principal attached by auth.Middleware.
// Requests without an identity, or with an anonymous one, resolve to
// AnonymousIdentity. Authenticated principals are prefixed with "u=", so a
// caller whose principal is literally "anonymous" keeps a separate entry.
func PrincipalIdentity(r *http.Request) string {
	id := auth.IdentityFromContext(r.Context())
	if id == nil || id.IsAnonymous() {
		return AnonymousIdentity
	}
	return AuthenticatedPrefix + id.Principal
}

// AuthenticatedPrefix namespaces authenticated principals in keys.
const AuthenticatedPrefix = "u="
