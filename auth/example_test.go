package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/jonwraymond/respcache/auth"
)

func ExampleMiddleware() {
	keys := auth.NewMemoryAPIKeyStore()
	keys.Add("s3cret", auth.APIKeyInfo{ID: "ci", Principal: "build-bot"})

	authn := auth.NewCompositeAuthenticator(
		auth.NewJWTAuthenticator(auth.JWTConfig{}, auth.NewStaticKeyProvider([]byte("hmac-secret"))),
		auth.NewAPIKeyAuthenticator("", keys),
	)

	h := auth.Middleware(authn, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, auth.PrincipalFromContext(r.Context()))
	}))

	for _, key := range []string{"", "s3cret", "wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			fmt.Println(rec.Code, rec.Body.String())
		} else {
			fmt.Println(rec.Code)
		}
	}
	// Output:
	// 200 anonymous
	// 200 build-bot
	// 401
}

func ExampleWithIdentity() {
	ctx := auth.WithIdentity(context.Background(), &auth.Identity{Principal: "user-1"})
	fmt.Println(auth.PrincipalFromContext(ctx))
	fmt.Println(auth.PrincipalFromContext(context.Background()) == "")
	// Output:
	// user-1
	// true
}
