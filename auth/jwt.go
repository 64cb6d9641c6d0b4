package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// JWTConfig configures the bearer token authenticator. Tokens must be
// HS256-signed with Secret.
type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	Leeway   time.Duration `yaml:"leeway"`
}

// JWTAuthenticator validates bearer tokens from the Authorization header.
type JWTAuthenticator struct {
	key    []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(config JWTConfig) (*JWTAuthenticator, error) {
	if config.Secret == "" {
		return nil, ErrNoSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}
	return &JWTAuthenticator{key: []byte(config.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return string(MethodJWT)
}

// Supports returns true for "Authorization: Bearer ..." requests.
func (a *JWTAuthenticator) Supports(h http.Header) bool {
	return strings.HasPrefix(h.Get("Authorization"), bearerPrefix)
}

// Authenticate validates the token and maps its registered claims.
func (a *JWTAuthenticator) Authenticate(_ context.Context, h http.Header) (*Identity, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(h.Get("Authorization"), bearerPrefix))
	if raw == "" {
		return nil, ErrMissingCredentials
	}

	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, errors.Join(ErrInvalidCredentials, err)
	}

	id := &Identity{Subject: claims.Subject, Method: MethodJWT}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	return id, nil
}

var _ Authenticator = (*JWTAuthenticator)(nil)
