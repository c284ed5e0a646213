// Package main tests for desktop daemon wiring and routing.
package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/kimhsiao/lifetrack/backend/internal/config"
	"github.com/kimhsiao/lifetrack/backend/internal/db"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()
	cfg.UserID = "u1"
	cfg.Timezone = "UTC"
	cfg.Server.Port = 0 // any free port
	cfg.Logging.Level = "error"
	return cfg
}

type app struct {
	handler http.Handler
	repos   *db.Repositories
}

// newApp builds the dependency graph without starting the server.
func newApp(t *testing.T) *app {
	t.Helper()
	var a app
	fxApp := fxtest.New(t, Module(testConfig(t)), fx.Populate(&a.handler, &a.repos))
	fxApp.RequireStart()
	t.Cleanup(fxApp.RequireStop)
	return &a
}

func (a *app) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestModule_Validates(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Module(testConfig(t))))
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.False(t, cfg.Sync.Enabled)
}

func TestRoutes_Health(t *testing.T) {
	a := newApp(t)
	rr := a.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestRoutes_SyncStatusWhenDisabled(t *testing.T) {
	a := newApp(t)
	rr := a.do(t, http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, false, body["isOnline"])
	assert.Equal(t, false, body["isRunning"])
	assert.Equal(t, "offline", body["label"])
}

func TestRoutes_MutationIsQueuedAndCounted(t *testing.T) {
	a := newApp(t)
	ctx := t.Context()

	rec, err := a.repos.TrackingRecurrings.Create(ctx, &models.TrackingRecurring{
		Name:         "Walk",
		ResponseType: models.ResponseBoolean,
		Recurrence:   models.Recurrence{RecurrenceType: recurrence.Daily},
		IsActive:     true,
	})
	require.NoError(t, err)

	rr := a.do(t, http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	queue := decode(t, rr)["queue"].(map[string]any)
	assert.Equal(t, float64(1), queue["total"])

	// Sync is disabled, so only the queue watcher keeps the status count current.
	require.Eventually(t, func() bool {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))
		var body struct {
			Sync struct {
				QueueSize int `json:"queueSize"`
			} `json:"sync"`
		}
		return json.Unmarshal(rr.Body.Bytes(), &body) == nil && body.Sync.QueueSize == 1
	}, 2*time.Second, 10*time.Millisecond)

	rr = a.do(t, http.MethodGet, "/api/trackers/"+rec.ID+"/schedule?from=2026-01-01&to=2026-01-03", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.NoError(t, a.repos.TrackingRecurrings.SoftDelete(ctx, rec.ID))
	rr = a.do(t, http.MethodGet, "/api/trash/tracking_recurrings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["count"])
}

func TestRoutes_Navigation(t *testing.T) {
	a := newApp(t)
	rr := a.do(t, http.MethodPost, "/api/navigation/create", map[string]string{"to": "/tracking/journal"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/tracking/journal?create=1", decode(t, rr)["href"])
}

func TestRoutes_EventsRequiresUpgrade(t *testing.T) {
	a := newApp(t)
	rr := a.do(t, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
