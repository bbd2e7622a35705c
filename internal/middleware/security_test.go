package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get(headerXContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(headerXFrameOptions))
	assert.NotEmpty(t, rec.Header().Get(headerStrictTransportSecurity))
}

func TestHostCheck(t *testing.T) {
	h := HostCheck("api.coursely.app")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	for host, want := range map[string]int{
		"api.coursely.app":      http.StatusOK,
		"API.coursely.app:443":  http.StatusOK,
		"evil.example.com":      http.StatusForbidden,
		"api.coursely.app.evil": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, host)
	}
}

func TestClientIP(t *testing.T) {
	var seen string
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = ClientIPFrom(r) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	ClientIP(false)(capture).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.0.0.2", seen)

	ClientIP(true)(capture).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", seen)
}

func TestLoginRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := LoginRateLimit(ctx)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "203.0.113.20:999"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < loginRateLimitBurst; i++ {
		assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/auth/login"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/api/auth/login"))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/courses"), "other routes are not limited")
}

func TestIPLimiter_Sweep(t *testing.T) {
	l := NewIPLimiter(rate.Every(time.Hour), 1, time.Minute)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	l.sweep(time.Now().Add(2 * time.Minute))
	assert.True(t, l.Allow("a"), "idle entries are forgotten")
}
