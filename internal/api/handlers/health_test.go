package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/config"
	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/services"
)

func healthRouter(artifactPath string, breakers *services.CircuitBreakerService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		GeminiAPIKey:        "test-key",
		GeminiModel:         "gemini-2.5-pro",
		InsightsMaxRetries:  2,
		InsightsBackoffBase: time.Second,
	}
	insights := services.NewInsightsClient(cfg, testLogger())
	handler := NewHealthHandler(artifactPath, insights, nil, nil, breakers, testLogger())

	router := gin.New()
	router.GET("/health", handler.GetHealth)
	router.GET("/ready", handler.GetReady)
	return router
}

func TestGetHealthReportsProviderBreakerStates(t *testing.T) {
	breakers := services.NewCircuitBreakerService(5, 30*time.Second, testLogger())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthRouter(filepath.Join(t.TempDir(), "dashboard_data.json"), breakers).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Checks["insights_upstream"])
	assert.Equal(t, "disabled", status.Checks["redis"])
	for _, provider := range []string{"nflverse", "espn", "oddsapi"} {
		assert.Equal(t, "closed", status.Checks["breaker_"+provider])
	}
}

func TestGetHealthWithoutPipelineOmitsBreakerChecks(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthRouter(filepath.Join(t.TempDir(), "dashboard_data.json"), nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.NotContains(t, status.Checks, "breaker_nflverse")
}

func TestGetReadyBeforeFirstArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard_data.json")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	healthRouter(path, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "missing", status.Checks["artifact"])
}

func TestGetReadyWithArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard_data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	healthRouter(path, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "ok", status.Checks["artifact"])
}
