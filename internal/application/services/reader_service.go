package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/security"
)

var (
	// ErrMissingClientID is returned when a request carries no client id.
	ErrMissingClientID = errors.New("client id is required")
	// ErrInvalidEvent is returned for events of an unknown type.
	ErrInvalidEvent = errors.New("invalid reader event")
)

// ReaderProfile is the admin view of a reader.
type ReaderProfile struct {
	Reader          *reader.Reader  `json:"reader"`
	Events          []*reader.Event `json:"events"`
	LinkedClientIDs []string        `json:"linked_client_ids"`
}

// ReaderService orchestrates reader event intake and reader state lookups.
type ReaderService struct {
	repo     reader.Repository
	identity *ReaderIdentityService
	segments *SegmentService
	selector *SegmentSelectorService
	logger   *logging.ChanneledLogger
}

// NewReaderService creates a new reader service.
func NewReaderService(repo reader.Repository, identity *ReaderIdentityService, segments *SegmentService, selector *SegmentSelectorService, logger *logging.ChanneledLogger) *ReaderService {
	return &ReaderService{
		repo:     repo,
		identity: identity,
		segments: segments,
		selector: selector,
		logger:   logger,
	}
}

// RecordEvents validates and stamps events, then appends them. It returns
// the number of events stored after view deduplication.
func (s *ReaderService) RecordEvents(clientID string, events []*reader.Event, now time.Time) (int, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return 0, ErrMissingClientID
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	for i, ev := range events {
		if ev == nil {
			return 0, fmt.Errorf("%w: event %d is empty", ErrInvalidEvent, i)
		}
		if !ev.Type.Valid() {
			return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
		}
		ev.ClientID = clientID
		if ev.ID == "" {
			ev.ID = security.GenerateULID()
		}
		if ev.DateCreated.IsZero() {
			ev.DateCreated = now
		}
	}
	if len(events) == 0 {
		return 0, nil
	}

	start := time.Now()
	accepted, err := s.repo.SaveReaderEvents(clientID, events)
	if err != nil {
		s.logger.WithClient(logging.ChannelReaders, clientID).Error("Failed to save reader events", "error", err)
		return 0, fmt.Errorf("failed to save reader events: %w", err)
	}
	s.logger.WithClient(logging.ChannelReaders, clientID).Info("Reader events recorded",
		"submitted", len(events), "accepted", accepted, "duration", time.Since(start))
	return accepted, nil
}

// Snapshot loads the reader state used for matching: the profile of clientID
// and the merged events of every linked client id.
func (s *ReaderService) Snapshot(clientID, refererURL, pageRefererURL string, now time.Time) (ReaderSnapshot, []string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ids, err := s.identity.ReconcileClientIDs(clientID)
	if err != nil {
		return ReaderSnapshot{}, nil, err
	}
	r, err := s.repo.GetReader(clientID)
	if err != nil {
		return ReaderSnapshot{}, nil, fmt.Errorf("failed to load reader: %w", err)
	}
	events, err := s.identity.MergedEvents(ids, reader.AllEventTypes)
	if err != nil {
		return ReaderSnapshot{}, nil, err
	}
	return ReaderSnapshot{
		Reader:         r,
		Events:         events,
		RefererURL:     refererURL,
		PageRefererURL: pageRefererURL,
		Now:            now,
	}, ids, nil
}

// GetProfile returns the reader, its full event log and its linked client ids.
func (s *ReaderService) GetProfile(clientID string) (*ReaderProfile, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrMissingClientID
	}
	r, err := s.repo.GetReader(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reader: %w", err)
	}
	events, err := s.repo.GetReaderEvents(clientID, reader.AllEventTypes, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load reader events: %w", err)
	}
	linked, err := s.identity.ReconcileClientIDs(clientID)
	if err != nil {
		return nil, err
	}
	return &ReaderProfile{Reader: r, Events: events, LinkedClientIDs: linked}, nil
}

// GetLinkedClients returns the reconciled client ids of a reader.
func (s *ReaderService) GetLinkedClients(clientID string) ([]string, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrMissingClientID
	}
	return s.identity.ReconcileClientIDs(clientID)
}

// GetBestSegment resolves the best-priority segment of a reader against the
// catalog. It returns nil when no segment matches.
func (s *ReaderService) GetBestSegment(clientID, refererURL, pageRefererURL string, now time.Time) (*campaigns.Segment, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrMissingClientID
	}
	set, err := s.segments.SegmentSet()
	if err != nil {
		return nil, err
	}
	snap, _, err := s.Snapshot(clientID, refererURL, pageRefererURL, now)
	if err != nil {
		return nil, err
	}
	id := s.selector.BestPrioritySegment(set, snap, nil)
	if id == "" {
		return nil, nil
	}
	return set[id], nil
}
