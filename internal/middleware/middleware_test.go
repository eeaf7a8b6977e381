// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/posts", "/v1/posts"},
		{"/v1/users/3f2b8c1e-0d4a-4b7e-9c2f-1a2b3c4d5e6f/followers", "/v1/users/{id}/followers"},
		{"/v1/notifications/42/", "/v1/notifications/{id}"},
		{"/v1/posts/Ab3dEf9h/comments", "/v1/posts/Ab3dEf9h/comments"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeEndpoint(tt.path))
		})
	}
}

func TestKeyByIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "ratelimit:ip:10.0.0.7", KeyByIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "ratelimit:ip:192.0.2.9", KeyByIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.5")
	assert.Equal(t, "ratelimit:ip:203.0.113.5", KeyByIP(req))
}

func TestKeyByUserAndEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/17", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "ratelimit:ip:10.0.0.7:endpoint:/v1/notifications/{id}", KeyByUserAndEndpoint(req))

	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "u1"))
	assert.Equal(t, "ratelimit:user:u1:endpoint:/v1/notifications/{id}", KeyByUserAndEndpoint(req))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "trace-me", seen)
	assert.Equal(t, "trace-me", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestSecurityHeaders(t *testing.T) {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	SecurityHeaders(false)(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	SecurityHeaders(true)(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestStatusRecorderWithoutHijacker(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}

	_, _, err := rec.Hijack()
	assert.Error(t, err)
	assert.Zero(t, rec.status)

	_, _ = rec.Write([]byte("ok"))
	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, 2, rec.bytes)
}
