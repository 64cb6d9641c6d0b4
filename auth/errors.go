package auth

import "errors"

// Sentinel errors. The first three deny a request; anything else returned
// by an Authenticator is treated as an internal failure.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")

	ErrNoKeys   = errors.New("auth: no api keys configured")
	ErrNoSecret = errors.New("auth: jwt secret is empty")
)

// Denied reports whether err rejects the caller rather than signalling an
// internal failure.
func Denied(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired)
}
