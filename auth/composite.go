package auth

import (
	"context"
	"net/http"
)

// CompositeAuthenticator tries authenticators in order and returns the first
// identity produced. A rejection from one authenticator does not stop the
// chain; an internal error does.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator creates a chain. Nil entries are skipped.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	c := &CompositeAuthenticator{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// Name returns "composite".
func (c *CompositeAuthenticator) Name() string {
	return "composite"
}

// Len returns the number of chained authenticators.
func (c *CompositeAuthenticator) Len() int {
	return len(c.authenticators)
}

// Supports reports whether any chained authenticator supports r.
func (c *CompositeAuthenticator) Supports(r *http.Request) bool {
	for _, a := range c.authenticators {
		if a.Supports(r) {
			return true
		}
	}
	return false
}

// Authenticate returns the first successful identity. When every supporting
// authenticator rejects, the last rejection is returned.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	lastErr := ErrMissingCredentials
	for _, a := range c.authenticators {
		if !a.Supports(r) {
			continue
		}
		id, err := a.Authenticate(ctx, r)
		if err == nil {
			return id, nil
		}
		if !IsRejection(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

var _ Authenticator = (*CompositeAuthenticator)(nil)
