package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		apiKey     string
		header     string
		value      string
		wantStatus int
	}{
		{"disabled when no key configured", "", "", "", http.StatusOK},
		{"bearer token accepted", "secret", "Authorization", "Bearer secret", http.StatusOK},
		{"api key header accepted", "secret", "X-API-Key", "secret", http.StatusOK},
		{"missing token rejected", "secret", "", "", http.StatusUnauthorized},
		{"wrong token rejected", "secret", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme rejected", "secret", "Authorization", "Basic secret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(tt.apiKey)(next)

			req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"remote addr", "10.0.0.1:4242", nil, "10.0.0.1"},
		{"x-forwarded-for single", "10.0.0.1:4242", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"x-forwarded-for chain takes first", "10.0.0.1:4242", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "203.0.113.7"},
		{"x-real-ip", "10.0.0.1:4242", map[string]string{"X-Real-IP": "198.51.100.3"}, "198.51.100.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
