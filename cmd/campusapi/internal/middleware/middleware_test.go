package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/telemetry"
	"github.com/pensezy/edutrack/pkg/sdk"
)

type tokenMap map[string]auth.AuthenticatedPrincipal

func (m tokenMap) Authenticate(_ context.Context, token string) (auth.AuthenticatedPrincipal, error) {
	p, ok := m[token]
	if !ok {
		return auth.AuthenticatedPrincipal{}, errors.New("unknown token")
	}
	return p, nil
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer  abc ", want: "abc", ok: true},
		{header: "Basic abc", ok: false},
		{header: "Bearer ", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", tt.header)
		got, ok := BearerToken(r)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestRequireAuthenticationAndPermission(t *testing.T) {
	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)
	tokens := tokenMap{
		"teacher":   {AccountID: 1, Role: sdk.RoleTeacher},
		"principal": {AccountID: 2, Role: sdk.RolePrincipal},
	}

	r := chi.NewRouter()
	r.Use(RequireAuthentication(tokens, zerolog.Nop()))
	r.With(RequirePermission(enforcer, auth.ObjectSchool, auth.SchoolUpdatePrincipal, zerolog.Nop())).
		Put("/schools/{id}/principal", okHandler)
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, int64(1), p.AccountID)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{name: "no token", method: http.MethodGet, path: "/me", status: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/me", token: "nope", status: http.StatusUnauthorized},
		{name: "authenticated", method: http.MethodGet, path: "/me", token: "teacher", status: http.StatusOK},
		{name: "teacher forbidden", method: http.MethodPut, path: "/schools/s1/principal", token: "teacher", status: http.StatusForbidden},
		{name: "principal allowed", method: http.MethodPut, path: "/schools/s1/principal", token: "principal", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestRequirePermission_WithoutPrincipal(t *testing.T) {
	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)
	h := RequirePermission(enforcer, auth.ObjectUser, auth.UserRead, zerolog.Nop())(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{PerMinute: 1, Burst: 2, MaxClients: 2})
	var limited int
	h := rl.Middleware(func(*http.Request) { limited++ })(http.HandlerFunc(okHandler))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
		return rec.Code
	}

	// Test 1: burst then reject
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5000"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5002"))
	assert.Equal(t, 1, limited)

	// Test 2: other clients have their own bucket
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000"))

	// Test 3: tracked clients are bounded
	send("10.0.0.3:5000")
	assert.Equal(t, 2, rl.Clients())
}

func TestRecordMetrics(t *testing.T) {
	m := telemetry.NewServerMetrics()
	r := chi.NewRouter()
	r.Use(RecordMetrics(m))
	r.Get("/api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "user not found")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"user not found"}`, rec.Body.String())

	count, err := testutil.GatherAndCount(m.Registry(), "campusapi_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTrustedRealIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.1.0.0/16", "192.0.2.7"})
	require.NoError(t, err)
	require.Len(t, trusted, 2)

	var seen string
	h := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientIP(r)
	}))

	tests := []struct {
		name   string
		peer   string
		header string
		want   string
	}{
		{name: "untrusted peer keeps its address", peer: "203.0.113.9:4000", header: "198.51.100.1", want: "203.0.113.9"},
		{name: "trusted prefix", peer: "10.1.4.2:4000", header: "198.51.100.1", want: "198.51.100.1"},
		{name: "trusted address", peer: "192.0.2.7:4000", header: "198.51.100.2", want: "198.51.100.2"},
		{name: "trusted peer without header", peer: "10.1.4.2:4000", want: "10.1.4.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.RemoteAddr = tt.peer
			if tt.header != "" {
				req.Header.Set("X-Forwarded-For", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, seen)
		})
	}

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestRateLimiter_IgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{PerMinute: 1, Burst: 1})
	h := TrustedRealIP(nil)(rl.Middleware(nil)(http.HandlerFunc(okHandler)))

	codes := make([]int, 0, 3)
	for _, forged := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", forged)
		req.Header.Set("X-Real-IP", forged)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rl.Clients())
}
