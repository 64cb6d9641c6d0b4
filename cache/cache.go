package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the longest key accepted by ValidateKey.
const MaxKeyLength = 512

var (
	// ErrInvalidKey is returned for empty keys or keys containing line breaks.
	ErrInvalidKey = errors.New("cache: key is invalid")
	// ErrKeyTooLong is returned for keys longer than MaxKeyLength.
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores opaque values with a time-to-live. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks that key is usable by any Cache.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}
