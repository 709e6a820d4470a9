package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	ttl    time.Duration
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) TTL(context.Context, string) (time.Duration, error) {
	return f.ttl, nil
}

func (f *fakeRateStore) RateLimitKey(scope string) string {
	return "test:" + scope
}

func okRateHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func authRequest(path, email string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = "1.2.3.4:5678"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestAuthRateLimitPreservesBody(t *testing.T) {
	var seen string
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 2, 2), newFakeRateStore(), nil, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seen = string(raw)
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authRequest("/api/login", "tester@example.com", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, seen, `"email":"tester@example.com"`)
}

func TestAuthRateLimitEmailCounterIgnoresCase(t *testing.T) {
	store := newFakeRateStore()
	store.ttl = 42 * time.Second
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 2), store, nil, nil)(http.HandlerFunc(okRateHandler))

	emails := []string{"blocked@example.com", "  Blocked@Example.com ", "BLOCKED@example.com"}
	for i, email := range emails {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authRequest("/api/login", email, nil))
		if i < 2 {
			assert.Equal(t, http.StatusOK, rec.Code, "attempt %d", i)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "42", rec.Header().Get("Retry-After"))

		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
	}
	assert.Len(t, store.counts, 1)
}

func TestAuthRateLimitIPCounterUsesForwardedHop(t *testing.T) {
	store := newFakeRateStore()
	handler := AuthRateLimit(NewAuthRateLimitPolicy("Register", time.Minute, 1, 0), store, nil, nil)(http.HandlerFunc(okRateHandler))
	headers := map[string]string{"X-Forwarded-For": "garbage, 5.6.7.8, 10.0.0.1"}

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, authRequest("/api/register", "foo@example.com", headers))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, authRequest("/api/register", "bar@example.com", headers))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"), "window is used when no ttl is reported")
	assert.Contains(t, store.counts, "test:ip:register:5.6.7.8")
}

func TestAuthRateLimitInactivePolicyPassesThrough(t *testing.T) {
	store := newFakeRateStore()
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", 0, 1, 1), store, nil, nil)(http.HandlerFunc(okRateHandler))

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authRequest("/api/login", "a@example.com", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, store.counts)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "socket peer", want: "1.2.3.4"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 9.9.9.9 "}, want: "9.9.9.9"},
		{name: "forwarded wins", headers: map[string]string{"X-Forwarded-For": "7.7.7.7", "X-Real-IP": "9.9.9.9"}, want: "7.7.7.7"},
		{name: "ipv6", headers: map[string]string{"X-Forwarded-For": "2001:db8::1"}, want: "2001:db8::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, clientIP(authRequest("/", "x@y.z", tc.headers)))
		})
	}
}
