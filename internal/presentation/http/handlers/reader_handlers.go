package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/application/services"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// ReaderHandlers contains reader event intake and reader state endpoints
type ReaderHandlers struct {
	readerService *services.ReaderService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewReaderHandlers creates reader handlers with injected dependencies
func NewReaderHandlers(readerService *services.ReaderService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ReaderHandlers {
	return &ReaderHandlers{
		readerService: readerService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// PostEvents handles POST /api/v1/readers/:clientId/events
func (h *ReaderHandlers) PostEvents(c *gin.Context) {
	clientID := c.Param("clientId")
	marker := h.perfTracker.StartOperation("readers:events", clientID)
	defer marker.Complete()

	var req struct {
		Events []*reader.Event `json:"events"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Readers().Error("Reader events JSON binding failed", "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	accepted, err := h.readerService.RecordEvents(clientID, req.Events, time.Now().UTC())
	if err != nil {
		marker.SetError(err)
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "accepted": accepted})
}

// GetReader handles GET /api/v1/readers/:clientId
func (h *ReaderHandlers) GetReader(c *gin.Context) {
	profile, err := h.readerService.GetProfile(c.Param("clientId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetLinked handles GET /api/v1/readers/:clientId/linked
func (h *ReaderHandlers) GetLinked(c *gin.Context) {
	ids, err := h.readerService.GetLinkedClients(c.Param("clientId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_ids": ids})
}

// GetSegment handles GET /api/v1/readers/:clientId/segment
func (h *ReaderHandlers) GetSegment(c *gin.Context) {
	marker := h.perfTracker.StartOperation("readers:segment", c.Param("clientId"))
	defer marker.Complete()

	segment, err := h.readerService.GetBestSegment(
		c.Param("clientId"),
		c.Query("referer_url"),
		c.Query("page_referer_url"),
		time.Now().UTC(),
	)
	if err != nil {
		marker.SetError(err)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segment": segment})
}

func (h *ReaderHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingClientID), errors.Is(err, services.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Readers().Error("Reader request failed", "path", c.Request.URL.Path, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
