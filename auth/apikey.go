package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader carries the key when APIKeyConfig.Header is empty.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKey is one accepted key. Key is usually a secretref resolved at load.
type APIKey struct {
	Name string `yaml:"name" validate:"required"`
	Key  string `yaml:"key" validate:"required"`
}

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys" validate:"dive"`
}

type storedKey struct {
	name string
	sum  [sha256.Size]byte
}

// APIKeyAuthenticator validates keys against a fixed set. Only digests
// are kept in memory.
type APIKeyAuthenticator struct {
	header string
	keys   []storedKey
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(config APIKeyConfig) (*APIKeyAuthenticator, error) {
	if len(config.Keys) == 0 {
		return nil, ErrNoKeys
	}
	header := config.Header
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	a := &APIKeyAuthenticator{header: header}
	for _, k := range config.Keys {
		if k.Key == "" {
			return nil, fmt.Errorf("auth: api key %q is empty", k.Name)
		}
		a.keys = append(a.keys, storedKey{name: k.Name, sum: sha256.Sum256([]byte(k.Key))})
	}
	return a, nil
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return string(MethodAPIKey)
}

// Supports returns true if the request carries the key header.
func (a *APIKeyAuthenticator) Supports(h http.Header) bool {
	return h.Get(a.header) != ""
}

// Authenticate compares the presented key against every stored key so
// timing does not depend on which key matched.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, h http.Header) (*Identity, error) {
	presented := strings.TrimSpace(h.Get(a.header))
	if presented == "" {
		return nil, ErrMissingCredentials
	}
	sum := sha256.Sum256([]byte(presented))

	match := -1
	for i := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], a.keys[i].sum[:]) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Subject: a.keys[match].name, Method: MethodAPIKey}, nil
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
