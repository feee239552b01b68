package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	on := Config{Enabled: true, Token: "s3cret"}

	tests := []struct {
		name   string
		cfg    Config
		method string
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, "POST", "/api/v1/tle/fetch", "", http.StatusNoContent},
		{"public path", on, "GET", "/api/v1/satellites", "", http.StatusNoContent},
		{"public write", on, "PUT", "/api/v1/observer", "", http.StatusNoContent},
		{"probe", on, "GET", "/healthz", "", http.StatusNoContent},
		{"metadata read", on, "GET", "/api/v1/tle/metadata", "", http.StatusNoContent},
		{"missing header", on, "POST", "/api/v1/tle/fetch", "", http.StatusUnauthorized},
		{"wrong scheme", on, "POST", "/api/v1/tle/fetch", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", on, "POST", "/api/v1/tle/fetch", "Bearer nope", http.StatusUnauthorized},
		{"empty configured token", Config{Enabled: true}, "POST", "/api/v1/tle/fetch", "Bearer ", http.StatusUnauthorized},
		{"valid token", on, "POST", "/api/v1/tle/fetch", "Bearer s3cret", http.StatusNoContent},
		{"scheme case-insensitive", on, "POST", "/api/v1/tle/fetch", "bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}
