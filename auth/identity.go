package auth

import "time"

// Method indicates how a caller was authenticated.
type Method string

const (
	MethodAPIKey Method = "api_key"
	MethodJWT    Method = "jwt"
)

// Identity is an authenticated caller.
type Identity struct {
	// Subject is the key name or the token's "sub" claim.
	Subject string
	Method  Method

	// ExpiresAt is zero for API keys.
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the identity has expired at now.
func (id *Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}
