package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/sitehealth/observe"
)

// Middleware rejects requests that a does not authenticate. Denied
// callers get 401 with a JSON error body; internal failures get 500.
// The identity of accepted callers is attached to the request context.
//
// Usage:
//
//	health.RegisterHandlers(mux, st, auth.Middleware(chain, logger))
func Middleware(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r.Context(), r.Header)
			if err != nil {
				status, msg := http.StatusInternalServerError, "authentication failed"
				if Denied(err) {
					status, msg = http.StatusUnauthorized, "unauthorized"
					w.Header().Set("WWW-Authenticate", `Bearer realm="sitehealth"`)
				}
				if logger != nil {
					logger.Warn(r.Context(), "request rejected",
						observe.F("path", r.URL.Path), observe.F("status", status), observe.Err(err))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
