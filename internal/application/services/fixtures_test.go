package services

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	campaignpersistence "github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
	readerpersistence "github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/reader"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func testMatcherConfig() MatcherConfig {
	return MatcherConfig{
		PostViewContext: "post",
		PostViewsWindow: 30 * 24 * time.Hour,
		SessionTimeout:  45 * time.Minute,
	}
}

type engine struct {
	readerRepo  reader.Repository
	segments    *SegmentService
	readers     *ReaderService
	campaigns   *CampaignService
	identity    *ReaderIdentityService
	selector    *SegmentSelectorService
	eligibility *PromptEligibilityService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logging.NewDiscardLogger()
	readerRepo := readerpersistence.NewSQLReaderRepository(db, logger, 30*24*time.Hour)
	segmentRepo := campaignpersistence.NewSQLSegmentRepository(db, logger)

	matcher := NewSegmentMatcherService(testMatcherConfig())
	selector := NewSegmentSelectorService(matcher)
	eligibility := NewPromptEligibilityService(matcher, NewFrequencyService())
	identity := NewReaderIdentityService(readerRepo, 10, logger)
	segments := NewSegmentService(segmentRepo, stores.NewSegmentsStore(time.Minute, logger), logger)
	readers := NewReaderService(readerRepo, identity, segments, selector, logger)

	return &engine{
		readerRepo:  readerRepo,
		segments:    segments,
		readers:     readers,
		campaigns:   NewCampaignService(readers, segments, selector, eligibility, logger),
		identity:    identity,
		selector:    selector,
		eligibility: eligibility,
	}
}

func (e *engine) record(t *testing.T, clientID string, events ...*reader.Event) int {
	t.Helper()
	accepted, err := e.readers.RecordEvents(clientID, events, testNow)
	if err != nil {
		t.Fatalf("RecordEvents() error = %v", err)
	}
	return accepted
}

func (e *engine) createSegment(t *testing.T, id string, cfg campaigns.SegmentConfiguration) *campaigns.Segment {
	t.Helper()
	seg, err := e.segments.Create(&campaigns.Segment{ID: id, Name: id, Configuration: cfg})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", id, err)
	}
	return seg
}

func (e *engine) evaluate(t *testing.T, req EvaluationRequest) map[string]bool {
	t.Helper()
	if req.Now.IsZero() {
		req.Now = testNow
	}
	result, err := e.campaigns.EvaluatePrompts(req)
	if err != nil {
		t.Fatalf("EvaluatePrompts() error = %v", err)
	}
	return result.Visibility()
}

func postView(postID string, at time.Time) *reader.Event {
	return &reader.Event{
		Type:        reader.EventView,
		Context:     "post",
		DateCreated: at,
		Value:       map[string]any{"post_id": postID},
	}
}

func event(t reader.EventType, context string, at time.Time) *reader.Event {
	return &reader.Event{Type: t, Context: reader.EventContext(context), DateCreated: at}
}

func prompt(id, placement, segments string) *campaigns.Prompt {
	return &campaigns.Prompt{
		ID:    id,
		Title: id,
		Options: campaigns.PromptOptions{
			Frequency:         campaigns.FrequencyAlways,
			Placement:         placement,
			SelectedSegmentID: segments,
		},
	}
}
