package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the required iss claim. Empty skips the check.
	Issuer string

	// Audience is a required member of the aud claim. Empty skips the check.
	Audience string

	// PrincipalClaim names the claim used as Identity.Principal.
	// Default: "sub"
	PrincipalClaim string

	// Algorithms restricts accepted signing methods.
	// Default: HS256, HS384, HS512, RS256, RS384, RS512
	Algorithms []string

	// Leeway tolerates clock skew when checking exp, nbf and iat.
	Leeway time.Duration
}

var defaultAlgorithms = []string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512"}

// KeyProvider returns the verification key for a token's kid header.
type KeyProvider interface {
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider returns the same HMAC secret for every token.
type StaticKeyProvider struct {
	secret []byte
}

// NewStaticKeyProvider creates a provider for a shared HMAC secret.
func NewStaticKeyProvider(secret []byte) *StaticKeyProvider {
	return &StaticKeyProvider{secret: append([]byte(nil), secret...)}
}

// GetKey returns the secret regardless of keyID.
func (p *StaticKeyProvider) GetKey(context.Context, string) (any, error) {
	return p.secret, nil
}

// JWTAuthenticator validates bearer tokens from the Authorization header.
type JWTAuthenticator struct {
	config JWTConfig
	keys   KeyProvider
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator verifying signatures with keys.
func NewJWTAuthenticator(config JWTConfig, keys KeyProvider) *JWTAuthenticator {
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	if len(config.Algorithms) == 0 {
		config.Algorithms = defaultAlgorithms
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(config.Algorithms),
		jwt.WithLeeway(config.Leeway),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTAuthenticator{
		config: config,
		keys:   keys,
		parser: jwt.NewParser(opts...),
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}

// Supports reports whether r carries a bearer token.
func (a *JWTAuthenticator) Supports(r *http.Request) bool {
	_, ok := bearerToken(r)
	return ok
}

// Authenticate verifies the bearer token and maps its claims to an Identity.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.keys.GetKey(ctx, kid)
	})
	if err != nil {
		return nil, classifyJWTError(err)
	}

	principal, _ := claims[a.config.PrincipalClaim].(string)
	if principal == "" {
		return nil, fmt.Errorf("%w: missing %s claim", ErrInvalidCredentials, a.config.PrincipalClaim)
	}
	return identityFromClaims(principal, claims), nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, ErrKeySourceUnavailable):
		return err
	case errors.Is(err, ErrKeyNotFound):
		return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
}

func identityFromClaims(principal string, claims jwt.MapClaims) *Identity {
	id := &Identity{
		Principal: principal,
		Method:    AuthMethodJWT,
		Claims:    make(map[string]any, len(claims)),
	}
	for k, v := range claims {
		id.Claims[k] = v
	}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}
	return id
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

var (
	_ Authenticator = (*JWTAuthenticator)(nil)
	_ KeyProvider   = (*StaticKeyProvider)(nil)
)
