package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/models"
)

// InsightsGenerator is the slice of the insights client the handler needs.
type InsightsGenerator interface {
	GenerateInsights(ctx context.Context, req *models.InsightRequest) (*models.InsightResult, error)
}

// InsightsHandler exposes the AI analysis proxy endpoint.
type InsightsHandler struct {
	client InsightsGenerator
	logger *logrus.Logger
}

// NewInsightsHandler creates an insights handler
func NewInsightsHandler(client InsightsGenerator, logger *logrus.Logger) *InsightsHandler {
	return &InsightsHandler{
		client: client,
		logger: logger,
	}
}

// GenerateInsights handles POST /generate-insights. The response body is
// {"text": ...} on success and {"error": ...} with a non-2xx status on
// failure; upstream failure detail never reaches the client.
func (h *InsightsHandler) GenerateInsights(c *gin.Context) {
	var request models.InsightRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithError(err).Warn("Invalid insights request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"prompt_length": len(request.Prompt),
		"has_stats":     len(request.Context.Stats) > 0,
		"has_odds":      len(request.Context.Odds) > 0,
		"has_injuries":  len(request.Context.Injuries) > 0,
	}).Info("Processing insights request")

	result, err := h.client.GenerateInsights(c.Request.Context(), &request)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": models.ErrInsightsFailed.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": result.Text})
}
