package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	router := newTestApp(t).router()

	w := getPath(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))

	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "disabled", health["redis"], "tests run without a Redis instance")
	assert.Equal(t, "closed", health["clone_breaker"])
	assert.Equal(t, "closed", health["github_breaker"])
	assert.NotEmpty(t, health["timestamp"])
}

func TestHealthEndpointRejectsOtherMethods(t *testing.T) {
	router := newTestApp(t).router()

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, method)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	router := app.router()

	// Drive one request through so the counters move.
	require.Equal(t, http.StatusOK, getPath(router, "/health").Code)

	w := getPath(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "total_requests")
	assert.Contains(t, stats, "clones_performed")
}

func TestAdminCacheStats(t *testing.T) {
	router := newTestApp(t).router()

	w := getPath(router, "/admin/cache/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "response_cache")
	assert.Contains(t, stats, "leaderboard_cache")
	assert.Contains(t, stats, "compression")
}

func TestAdminDatabasePoolStats(t *testing.T) {
	router := newTestApp(t).router()

	w := getPath(router, "/admin/pools/database")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Pool  string                 `json:"pool"`
		Stats map[string]interface{} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "database", response.Pool)
	assert.NotEmpty(t, response.Stats)
}
