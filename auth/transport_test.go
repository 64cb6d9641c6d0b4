package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testChain(t *testing.T) Chain {
	t.Helper()
	keys, err := NewAPIKeyAuthenticator(APIKeyConfig{Keys: []APIKey{{Name: "ci", Key: "k-ci"}}})
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := NewJWTAuthenticator(JWTConfig{Secret: "s"})
	if err != nil {
		t.Fatal(err)
	}
	return Chain{keys, tokens}
}

func TestMiddleware(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte("s"), jwt.RegisteredClaims{
		Subject:   "bob",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	tests := []struct {
		name    string
		header  string
		value   string
		status  int
		subject string
	}{
		{name: "api key", header: DefaultAPIKeyHeader, value: "k-ci", status: http.StatusOK, subject: "ci"},
		{name: "bearer", header: "Authorization", value: "Bearer " + token, status: http.StatusOK, subject: "bob"},
		{name: "bad key", header: DefaultAPIKeyHeader, value: "x", status: http.StatusUnauthorized},
		{name: "no credentials", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware(testChain(t), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = SubjectFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/report/latest", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if got != tt.subject {
				t.Errorf("subject = %q, want %q", got, tt.subject)
			}
			if tt.status == http.StatusUnauthorized {
				if rr.Header().Get("WWW-Authenticate") == "" {
					t.Error("missing WWW-Authenticate header")
				}
				if !strings.Contains(rr.Body.String(), "unauthorized") {
					t.Errorf("body = %q", rr.Body.String())
				}
			}
		})
	}
}

type failingAuth struct{}

func (failingAuth) Name() string { return "failing" }
func (failingAuth) Supports(http.Header) bool { return true }
func (failingAuth) Authenticate(context.Context, http.Header) (*Identity, error) {
	return nil, context.DeadlineExceeded
}

func TestMiddleware_InternalError(t *testing.T) {
	h := Middleware(failingAuth{}, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler called")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report/history", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if id := IdentityFromContext(context.Background()); id != nil {
		t.Errorf("IdentityFromContext() = %+v, want nil", id)
	}
	if s := SubjectFromContext(context.Background()); s != "" {
		t.Errorf("SubjectFromContext() = %q, want empty", s)
	}
}
