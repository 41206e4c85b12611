package services

import (
	"strings"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

// EvaluationRequest is one page's worth of prompts to decide for a reader.
type EvaluationRequest struct {
	ClientID string
	Prompts  []*campaigns.Prompt
	// Segments overrides the catalog when non-nil.
	Segments []*campaigns.Segment
	// BestPrioritySegmentID skips segment selection when set.
	BestPrioritySegmentID string
	RefererURL            string
	PageRefererURL        string
	ViewAs                *campaigns.ViewAs
	Now                   time.Time
	// Visit, when set, is recorded as a view before evaluating.
	Visit *reader.Event
}

// CampaignService runs the per-request decision flow.
type CampaignService struct {
	readers     *ReaderService
	segments    *SegmentService
	selector    *SegmentSelectorService
	eligibility *PromptEligibilityService
	logger      *logging.ChanneledLogger
}

// NewCampaignService creates a new campaign evaluation service.
func NewCampaignService(readers *ReaderService, segments *SegmentService, selector *SegmentSelectorService, eligibility *PromptEligibilityService, logger *logging.ChanneledLogger) *CampaignService {
	return &CampaignService{
		readers:     readers,
		segments:    segments,
		selector:    selector,
		eligibility: eligibility,
		logger:      logger,
	}
}

// EvaluatePrompts decides the visibility of every prompt in the request.
func (s *CampaignService) EvaluatePrompts(req EvaluationRequest) (*campaigns.EvaluationResult, error) {
	start := time.Now()
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return nil, ErrMissingClientID
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	log := s.logger.WithClient(logging.ChannelCampaigns, clientID)

	if req.Visit != nil {
		visit := *req.Visit
		visit.Type = reader.EventView
		if _, err := s.readers.RecordEvents(clientID, []*reader.Event{&visit}, now); err != nil {
			log.Warn("Failed to record visit before evaluation", "error", err)
		}
	}

	var set campaigns.SegmentSet
	if req.Segments != nil {
		set = campaigns.NewSegmentSet(req.Segments)
	} else {
		var err error
		if set, err = s.segments.SegmentSet(); err != nil {
			return nil, err
		}
	}

	snap, ids, err := s.readers.Snapshot(clientID, req.RefererURL, req.PageRefererURL, now)
	if err != nil {
		log.Error("Failed to load reader state", "error", err)
		return nil, err
	}

	best := strings.TrimSpace(req.BestPrioritySegmentID)
	if req.ViewAs.HasSegment() || best == "" {
		best = s.selector.BestPrioritySegment(set, snap, req.ViewAs)
	}

	ec := campaigns.NewEvaluationContext()
	prompts := make([]*campaigns.Prompt, 0, len(req.Prompts))
	decisions := make([]campaigns.Decision, 0, len(req.Prompts))
	for _, prompt := range req.Prompts {
		if prompt == nil || prompt.ID == "" {
			continue
		}
		visible := s.eligibility.ShouldDisplay(EligibilityInput{
			Prompt:                prompt,
			Segments:              set,
			BestPrioritySegmentID: best,
			Snapshot:              snap,
			ViewAs:                req.ViewAs,
		}, ec)
		prompts = append(prompts, prompt)
		decisions = append(decisions, campaigns.Decision{PromptID: prompt.ID, Visible: visible})
	}
	decisions = s.eligibility.ApplySlotPriority(prompts, decisions, set, ec)

	visibleCount := 0
	for _, d := range decisions {
		if d.Visible {
			visibleCount++
		}
	}
	log.Info("Prompts evaluated",
		"prompts", len(decisions),
		"visible", visibleCount,
		"bestSegment", best,
		"linkedClients", len(ids),
		"duration", time.Since(start))

	return &campaigns.EvaluationResult{
		Decisions:             decisions,
		BestPrioritySegmentID: best,
		ClientIDs:             ids,
		Context:               ec,
	}, nil
}
