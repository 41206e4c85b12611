package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
	"github.com/gin-gonic/gin"
)

// HealthHandlers reports service liveness and request timings
type HealthHandlers struct {
	db          *database.DB
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db *database.DB, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{db: db, logger: logger, perfTracker: perfTracker}
}

// GetHealth handles GET /health
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		h.logger.Database().Error("Health check ping failed", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"turso":     h.db.UseTurso,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStats handles GET /api/v1/stats
func (h *HealthHandlers) GetStats(c *gin.Context) {
	summary := h.perfTracker.Summary()
	operations := make([]gin.H, 0, len(summary.Operations))
	for _, op := range summary.Operations {
		operations = append(operations, gin.H{
			"operation":   op.Operation,
			"count":       op.Count,
			"failures":    op.Failures,
			"slow":        op.Slow,
			"averageMs":   op.Average().Milliseconds(),
			"maxMs":       op.Max.Milliseconds(),
			"lastSuccess": op.LastSuccess,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"since":      summary.Since,
		"operations": operations,
		"recent":     summary.Recent,
	})
}
