// Package auth resolves the caller of an HTTP request.
//
// An Authenticator inspects a request for credentials it understands (a JWT
// bearer token, an API key) and turns them into an Identity. Middleware runs
// the configured Authenticator once per request and stores the result in the
// request context, where downstream layers read it with IdentityFromContext.
//
// Requests without credentials are not rejected. They proceed with the
// anonymous identity, so public routes stay reachable and the response cache
// keys them under a shared "anonymous" principal. Requests whose credentials
// fail validation are rejected with 401.
package auth
