package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyz(t *testing.T) {
	pass := func() error { return nil }
	fail := func() error { return errors.New("catalog empty") }

	tests := []struct {
		name     string
		checks   []Check
		wantCode int
		wantBody string
	}{
		{"no checks", nil, http.StatusOK, "ready\n"},
		{"all pass", []Check{pass, pass}, http.StatusOK, "ready\n"},
		{"one fails", []Check{pass, fail}, http.StatusServiceUnavailable, "not ready: catalog empty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Readyz(tt.checks...)(w, httptest.NewRequest("GET", "/readyz", nil))
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "ok") {
		t.Errorf("Healthz = %d %q", w.Code, w.Body.String())
	}
}
