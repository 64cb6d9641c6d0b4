package auth

import (
	"context"
	"net/http"
)

// Authenticator validates the credentials carried in request headers.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a rejected caller yields an error for which Denied is true;
//   any other error is an internal failure.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports reports whether h carries credentials this authenticator
	// understands.
	Supports(h http.Header) bool

	// Authenticate validates the credentials in h.
	Authenticate(ctx context.Context, h http.Header) (*Identity, error)
}

// Chain tries authenticators in order. The first one that supports the
// headers decides; a request no authenticator supports is missing
// credentials.
type Chain []Authenticator

// Name returns "chain".
func (c Chain) Name() string { return "chain" }

// Supports returns true if any authenticator supports h.
func (c Chain) Supports(h http.Header) bool {
	for _, a := range c {
		if a.Supports(h) {
			return true
		}
	}
	return false
}

// Authenticate delegates to the first supporting authenticator.
func (c Chain) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	for _, a := range c {
		if a.Supports(h) {
			return a.Authenticate(ctx, h)
		}
	}
	return nil, ErrMissingCredentials
}

var _ Authenticator = Chain(nil)
