package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-SupplyHub-Env"))
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	cases := []struct {
		name   string
		deps   map[string]Pinger
		status int
		checks map[string]string
	}{
		{name: "all up", deps: map[string]Pinger{"db": ok, "redis": ok}, status: http.StatusOK, checks: map[string]string{"db": "ok", "redis": "ok"}},
		{name: "redis down", deps: map[string]Pinger{"db": ok, "redis": down}, status: http.StatusServiceUnavailable, checks: map[string]string{"db": "ok", "redis": "unavailable"}},
		{name: "nil dependency skipped", deps: map[string]Pinger{"db": ok, "redis": nil}, status: http.StatusOK, checks: map[string]string{"db": "ok"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthReady(cfg, logger.Nop(), tc.deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			require.Equal(t, tc.status, rec.Code)

			var body struct {
				Data struct {
					Checks map[string]string `json:"checks"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.checks, body.Data.Checks)
		})
	}
}
