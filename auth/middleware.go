package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/respcache/observe"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Middleware attaches the caller's Identity to every request context.
//
// Requests without credentials that authn supports continue as the
// anonymous identity. Rejected credentials get 401, and internal failures
// (for example an unreachable key set) get 503. A nil authn treats every
// request as anonymous.
func Middleware(authn Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if authn == nil || !authn.Supports(r) {
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, AnonymousIdentity())))
				return
			}

			id, err := authn.Authenticate(ctx, r)
			if err != nil {
				if IsRejection(err) {
					logger.Warn(ctx, "authentication rejected",
						observe.F("authenticator", authn.Name()),
						observe.F("path", r.URL.Path),
						observe.F("error", err),
					)
					w.Header().Set("WWW-Authenticate", `Bearer realm="respcache"`)
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
					return
				}
				logger.Error(ctx, "authentication failed",
					observe.F("authenticator", authn.Name()),
					observe.F("error", err),
				)
				writeError(w, http.StatusServiceUnavailable, "auth_unavailable", "authentication temporarily unavailable")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: msg})
}

// RequireIdentity rejects requests whose context carries no identity, or an
// anonymous one, with 401. It must run after Middleware.
func RequireIdentity(logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil || id.IsAnonymous() {
				logger.Warn(r.Context(), "anonymous request refused",
					observe.F("method", r.Method),
					observe.F("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="respcache"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
