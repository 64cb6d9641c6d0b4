package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// RequestKey returns the cache key for a request. The URL is normalized so
// that equivalent spellings share an entry: scheme and host are lowercased,
// default ports and the fragment are dropped, and an empty path becomes "/".
// Keys that would exceed MaxKeyLength are shortened to a hash.
func RequestKey(method, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("cache: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("cache: url %q is not absolute: %w", rawURL, ErrInvalidKey)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	key := strings.ToUpper(method) + " " + u.String()
	if len(key) > MaxKeyLength {
		sum := sha256.Sum256([]byte(key))
		key = strings.ToUpper(method) + " sha256:" + hex.EncodeToString(sum[:])
	}
	return key, ValidateKey(key)
}
