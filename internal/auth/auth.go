// Package auth guards administrative endpoints with a static bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// rule marks a path prefix as admin-only for non-read methods.
type rule struct {
	prefix    string
	readsOpen bool
}

// Catalog fetches trigger outbound requests and replace the dataset, so they
// need the token. Everything not listed is public.
var rules = []rule{
	{prefix: "/api/v1/tle/", readsOpen: true},
}

// Requires reports whether r must carry the token under cfg.
func (cfg Config) Requires(r *http.Request) bool {
	if !cfg.Enabled {
		return false
	}
	read := r.Method == http.MethodGet || r.Method == http.MethodHead
	for _, ru := range rules {
		if strings.HasPrefix(r.URL.Path, ru.prefix) {
			return !(read && ru.readsOpen)
		}
	}
	return false
}

// valid reports whether the Authorization header holds the configured token.
func (cfg Config) valid(header string) bool {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || cfg.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(cfg.Token)) == 1
}

// Middleware rejects protected requests without a valid bearer token.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Requires(r) && !cfg.valid(r.Header.Get("Authorization")) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="sattrack"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
