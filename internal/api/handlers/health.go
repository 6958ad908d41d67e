package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/services"
)

// HealthStatus is the body of the health and readiness endpoints.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	artifactPath string
	insights     *services.InsightsClient
	cache        *services.CacheService
	scheduler    *services.SchedulerService
	breakers     *services.CircuitBreakerService
	logger       *logrus.Logger
}

// NewHealthHandler creates a new health handler. cache, scheduler and
// breakers may be nil when those features are disabled.
func NewHealthHandler(
	artifactPath string,
	insights *services.InsightsClient,
	cache *services.CacheService,
	scheduler *services.SchedulerService,
	breakers *services.CircuitBreakerService,
	logger *logrus.Logger,
) *HealthHandler {
	return &HealthHandler{
		artifactPath: artifactPath,
		insights:     insights,
		cache:        cache,
		scheduler:    scheduler,
		breakers:     breakers,
		logger:       logger,
	}
}

// GetHealth returns the basic health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := HealthStatus{
		Status:    "ok",
		Service:   "nfl-insight-analysis",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if h.insights.IsHealthy() {
		response.Checks["insights_upstream"] = "ok"
	} else {
		// an open breaker degrades the service but static data still serves
		response.Checks["insights_upstream"] = "circuit open"
	}

	if h.cache != nil {
		if h.cache.IsHealthy() {
			response.Checks["redis"] = "ok"
		} else {
			response.Checks["redis"] = "failed"
		}
	} else {
		response.Checks["redis"] = "disabled"
	}

	if h.breakers != nil {
		for name, state := range h.breakers.States() {
			response.Checks["breaker_"+name] = state
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetReady returns the readiness status: the server is ready once the cache
// artifact exists to serve.
func (h *HealthHandler) GetReady(c *gin.Context) {
	response := HealthStatus{
		Status:    "ready",
		Service:   "nfl-insight-analysis",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if info, err := os.Stat(h.artifactPath); err != nil {
		response.Status = "not_ready"
		response.Checks["artifact"] = "missing"
	} else {
		response.Checks["artifact"] = "ok"
		response.Checks["artifact_age"] = time.Since(info.ModTime()).Round(time.Second).String()
	}

	if h.scheduler != nil {
		for _, job := range h.scheduler.Jobs() {
			response.Checks["job_"+job.ID] = job.Status
		}
	}

	statusCode := http.StatusOK
	if response.Status != "ready" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
