package auth

import "time"

// AuthMethod indicates how an identity was established.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// AnonymousPrincipal is the principal of the anonymous identity.
const AnonymousPrincipal = "anonymous"

// Identity is the resolved caller of a request.
type Identity struct {
	// Principal uniquely identifies the caller (subject claim, key owner).
	Principal string

	// Email and Name are informational and may be empty.
	Email string
	Name  string

	Method AuthMethod

	// Claims holds the raw token claims or key metadata.
	Claims map[string]any

	// ExpiresAt is zero when the credential does not expire.
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// IsAnonymous reports whether the identity carries no authenticated principal.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// IsExpired reports whether the identity's credential has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return now.After(id.ExpiresAt)
}

// AnonymousIdentity returns a fresh anonymous identity.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: AnonymousPrincipal,
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}
