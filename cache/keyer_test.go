package cache

import (
	"strings"
	"testing"
)

func TestRequestKey_Normalizes(t *testing.T) {
	tests := []struct {
		method, url, want string
	}{
		{"get", "https://Example.COM", "GET https://example.com/"},
		{"GET", "https://example.com:443/post#top", "GET https://example.com/post"},
		{"HEAD", "http://example.com:80/a?b=1", "HEAD http://example.com/a?b=1"},
		{"GET", "http://example.com:8080/", "GET http://example.com:8080/"},
		{"GET", "http://[::1]:80/", "GET http://[::1]/"},
	}
	for _, tt := range tests {
		got, err := RequestKey(tt.method, tt.url)
		if err != nil {
			t.Errorf("RequestKey(%s, %s) error = %v", tt.method, tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RequestKey(%s, %s) = %q, want %q", tt.method, tt.url, got, tt.want)
		}
	}
}

func TestRequestKey_Rejects(t *testing.T) {
	for _, u := range []string{"/relative", "://bad", ""} {
		if _, err := RequestKey("GET", u); err == nil {
			t.Errorf("RequestKey(%q) error = nil, want error", u)
		}
	}
}

func TestRequestKey_LongURLHashed(t *testing.T) {
	u := "https://example.com/" + strings.Repeat("a", 600)
	key, err := RequestKey("GET", u)
	if err != nil {
		t.Fatalf("RequestKey() error = %v", err)
	}
	if !strings.HasPrefix(key, "GET sha256:") {
		t.Errorf("key = %q, want hashed form", key)
	}
	again, _ := RequestKey("GET", u)
	if again != key {
		t.Error("hashed key should be deterministic")
	}
}
