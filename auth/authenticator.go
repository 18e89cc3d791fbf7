package auth

import (
	"context"
	"net/http"
)

// Authenticator validates the credentials carried by a request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: rejections wrap one of the credential sentinels (see IsRejection);
//   any other error is an internal failure.
type Authenticator interface {
	// Name returns a short identifier used in logs.
	Name() string

	// Supports reports whether r carries credentials this authenticator
	// understands. Authenticate is only called when Supports is true.
	Supports(r *http.Request) bool

	// Authenticate returns the identity behind r's credentials.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}
