package auth

import "errors"

// Credential rejections. Middleware answers these with 401.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrKeyNotFound        = errors.New("auth: signing key not found")
)

// ErrKeySourceUnavailable means signing keys could not be fetched. It is an
// infrastructure failure, not a verdict on the caller's credentials.
var ErrKeySourceUnavailable = errors.New("auth: key source unavailable")

// IsRejection reports whether err is a verdict against the presented
// credentials rather than an internal failure.
func IsRejection(err error) bool {
	if errors.Is(err, ErrKeySourceUnavailable) {
		return false
	}
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrKeyNotFound)
}
