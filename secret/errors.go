package secret

import "errors"

var (
	// ErrUnknownProvider is returned for a reference to an unregistered provider.
	ErrUnknownProvider = errors.New("secret: unknown provider")

	// ErrNotFound is returned when a provider has no value for a reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrEmpty is returned in strict mode when a secret resolves to "".
	ErrEmpty = errors.New("secret: empty value")
)
