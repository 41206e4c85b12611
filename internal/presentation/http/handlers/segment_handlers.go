package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AtRiskMedia/campaigns-go/internal/application/services"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// SegmentHandlers contains the segment catalog endpoints
type SegmentHandlers struct {
	segmentService *services.SegmentService
	logger         *logging.ChanneledLogger
}

// NewSegmentHandlers creates segment handlers with injected dependencies
func NewSegmentHandlers(segmentService *services.SegmentService, logger *logging.ChanneledLogger) *SegmentHandlers {
	return &SegmentHandlers{
		segmentService: segmentService,
		logger:         logger,
	}
}

// GetAllSegments handles GET /api/v1/segments
func (h *SegmentHandlers) GetAllSegments(c *gin.Context) {
	segments, err := h.segmentService.List()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segments, "count": len(segments)})
}

// GetSegment handles GET /api/v1/segments/:id
func (h *SegmentHandlers) GetSegment(c *gin.Context) {
	segment, err := h.segmentService.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if segment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": campaigns.ErrSegmentNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, segment)
}

// CreateSegment handles POST /api/v1/segments
func (h *SegmentHandlers) CreateSegment(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	id, _ := raw["id"].(string)
	if strings.TrimSpace(id) == "" {
		id = security.GenerateULID()
	}

	segment, err := campaigns.DecodeSegment(strings.TrimSpace(id), raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.segmentService.Create(segment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateSegment handles PUT /api/v1/segments/:id
func (h *SegmentHandlers) UpdateSegment(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	segment, err := campaigns.DecodeSegment(c.Param("id"), raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// the path id wins over any id in the body
	segment.ID = c.Param("id")

	updated, err := h.segmentService.Update(segment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteSegment handles DELETE /api/v1/segments/:id
func (h *SegmentHandlers) DeleteSegment(c *gin.Context) {
	if err := h.segmentService.Delete(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ReorderSegments handles POST /api/v1/segments/reorder
func (h *SegmentHandlers) ReorderSegments(c *gin.Context) {
	var req struct {
		SegmentIDs []string `json:"segment_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	segments, err := h.segmentService.Reorder(req.SegmentIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segments, "count": len(segments)})
}

func (h *SegmentHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSegment):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, campaigns.ErrSegmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Segments().Error("Segment request failed", "path", c.Request.URL.Path, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
