package cache

import (
	"net/http"
	"time"
)

// Policy decides which responses are stored and for how long.
type Policy struct {
	// TTL is how long a stored response stays valid.
	// Zero disables caching.
	TTL time.Duration

	// MaxTTL caps any TTL passed to EffectiveTTL. Zero means no cap.
	MaxTTL time.Duration
}

// DefaultPolicy keeps responses for the length of a typical run.
func DefaultPolicy() Policy {
	return Policy{TTL: 5 * time.Minute, MaxTTL: 30 * time.Minute}
}

// NoCachePolicy stores nothing.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether a response to method with the given status
// is worth storing. Only safe methods are stored, and never a server error,
// which may clear up before the next probe asks.
func (p Policy) ShouldCache(method string, status int) bool {
	if p.TTL <= 0 {
		return false
	}
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	return status > 0 && status < http.StatusInternalServerError
}

// EffectiveTTL returns override when positive, else TTL, capped at MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.TTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
