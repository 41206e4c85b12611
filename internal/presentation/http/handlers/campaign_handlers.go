// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/application/services"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/campaigns-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// CampaignHandlers contains the prompt evaluation endpoint
type CampaignHandlers struct {
	campaignService *services.CampaignService
	logger          *logging.ChanneledLogger
	perfTracker     *performance.Tracker
}

// NewCampaignHandlers creates campaign handlers with injected dependencies
func NewCampaignHandlers(campaignService *services.CampaignService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *CampaignHandlers {
	return &CampaignHandlers{
		campaignService: campaignService,
		logger:          logger,
		perfTracker:     perfTracker,
	}
}

// debugResponseKey carries diagnostics in the evaluate response, next to the
// prompt ids. No prompt may use it as its id.
const debugResponseKey = "debug"

// EvaluateRequest is the body of POST /api/v1/campaigns/evaluate
type EvaluateRequest struct {
	ClientID string           `json:"client_id"`
	Prompts  []map[string]any `json:"prompts"`
	Settings struct {
		AllSegments           map[string]map[string]any `json:"all_segments"`
		BestPrioritySegmentID string                    `json:"best_priority_segment_id"`
	} `json:"settings"`
	RefererURL     string            `json:"referer_url"`
	PageRefererURL string            `json:"page_referer_url"`
	ViewAs         *campaigns.ViewAs `json:"view_as"`
	Now            string            `json:"now"`
	Debug          bool              `json:"debug"`
	Visit          *reader.Event     `json:"visit"`
}

// PostEvaluate handles POST /api/v1/campaigns/evaluate
func (h *CampaignHandlers) PostEvaluate(c *gin.Context) {
	start := time.Now()

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Campaigns().Error("Evaluate request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	marker := h.perfTracker.StartOperation("campaigns:evaluate", req.ClientID)
	defer marker.Complete()

	evalReq, err := h.buildRequest(c, &req)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.campaignService.EvaluatePrompts(evalReq)
	if err != nil {
		marker.SetError(err)
		if errors.Is(err, services.ErrMissingClientID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Campaigns().Error("Prompt evaluation failed", "error", err.Error(), "duration", time.Since(start))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{}
	for id, visible := range result.Visibility() {
		response[id] = visible
	}
	if req.Debug {
		response[debugResponseKey] = gin.H{
			"reasons":                  result.Context.Reasons,
			"best_priority_segment_id": result.BestPrioritySegmentID,
			"client_ids":               result.ClientIDs,
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *CampaignHandlers) buildRequest(c *gin.Context, req *EvaluateRequest) (services.EvaluationRequest, error) {
	out := services.EvaluationRequest{
		ClientID:              req.ClientID,
		BestPrioritySegmentID: req.Settings.BestPrioritySegmentID,
		RefererURL:            req.RefererURL,
		PageRefererURL:        req.PageRefererURL,
		Visit:                 req.Visit,
	}

	for i, raw := range req.Prompts {
		prompt, err := campaigns.DecodePrompt(raw)
		if err != nil {
			return out, fmt.Errorf("prompt %d: %w", i, err)
		}
		if strings.TrimSpace(prompt.ID) == debugResponseKey {
			return out, fmt.Errorf("prompt %d: id %q is reserved", i, debugResponseKey)
		}
		out.Prompts = append(out.Prompts, prompt)
	}

	if req.Settings.AllSegments != nil {
		segments, errs := campaigns.DecodeSegmentMap(req.Settings.AllSegments)
		for _, err := range errs {
			h.logger.Segments().Warn("Skipping undecodable segment from page settings", "error", err.Error())
		}
		if segments == nil {
			segments = []*campaigns.Segment{}
		}
		out.Segments = segments
	}

	if req.ViewAs.HasSegment() {
		if middleware.IsAdmin(c) {
			out.ViewAs = req.ViewAs
		} else {
			h.logger.Auth().Warn("Ignoring view_as from a non-admin request", "clientId", req.ClientID)
		}
	}

	if now := strings.TrimSpace(req.Now); now != "" {
		t, err := time.Parse(time.RFC3339, now)
		if err != nil {
			return out, errors.New("now must be an RFC 3339 timestamp")
		}
		out.Now = t.UTC()
	}

	return out, nil
}
