package handlers

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Donovan-Gamboa/NFL-Insight-Analysis/internal/utils"
)

// DashboardHandler serves the aggregated cache artifact. The artifact is
// replaced atomically by the pipeline, so streaming the file is safe against
// concurrent runs.
type DashboardHandler struct {
	artifactPath string
	logger       *logrus.Logger
}

// NewDashboardHandler creates a dashboard handler
func NewDashboardHandler(artifactPath string, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{
		artifactPath: artifactPath,
		logger:       logger,
	}
}

// GetDashboard handles GET /api/v1/dashboard, returning the artifact
// verbatim.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	if _, err := os.Stat(h.artifactPath); err != nil {
		h.logger.WithError(err).Warn("Dashboard artifact not available")
		utils.SendNotFound(c, "Dashboard data has not been generated yet")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Content-Type", "application/json")
	c.File(h.artifactPath)
}
