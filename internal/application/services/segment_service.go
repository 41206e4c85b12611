package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

// ErrInvalidSegment is returned for segment writes that fail validation.
var ErrInvalidSegment = errors.New("invalid segment")

// SegmentService orchestrates segment catalog operations over a snapshot cache.
type SegmentService struct {
	repo   campaigns.SegmentRepository
	cache  interfaces.SegmentCache
	logger *logging.ChanneledLogger
}

// NewSegmentService creates a new segment catalog service.
func NewSegmentService(repo campaigns.SegmentRepository, cache interfaces.SegmentCache, logger *logging.ChanneledLogger) *SegmentService {
	return &SegmentService{repo: repo, cache: cache, logger: logger}
}

// List returns the catalog in priority order.
func (s *SegmentService) List() ([]*campaigns.Segment, error) {
	if segments, ok := s.cache.GetSegments(); ok {
		return segments, nil
	}

	start := time.Now()
	gen := s.cache.Generation()
	segments, err := s.repo.FindAll()
	if err != nil {
		s.logger.Segments().Error("Failed to load segment catalog", "error", err)
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}
	cached := s.cache.SetSegments(segments, gen)
	s.logger.Segments().Debug("Segment catalog loaded from storage", "count", len(segments), "cached", cached, "duration", time.Since(start))

	out := make([]*campaigns.Segment, len(segments))
	copy(out, segments)
	return out, nil
}

// SegmentSet returns the catalog indexed by id.
func (s *SegmentService) SegmentSet() (campaigns.SegmentSet, error) {
	segments, err := s.List()
	if err != nil {
		return nil, err
	}
	return campaigns.NewSegmentSet(segments), nil
}

// Get returns one segment, or nil when it does not exist.
func (s *SegmentService) Get(id string) (*campaigns.Segment, error) {
	segments, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		if seg.ID == id {
			return seg, nil
		}
	}
	return nil, nil
}

// Create appends a segment to the catalog.
func (s *SegmentService) Create(seg *campaigns.Segment) (*campaigns.Segment, error) {
	if err := validateSegment(seg); err != nil {
		return nil, err
	}
	if seg.ID != "" {
		existing, err := s.repo.FindByID(seg.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: segment %s already exists", ErrInvalidSegment, seg.ID)
		}
	}
	if err := s.repo.Create(seg); err != nil {
		s.logger.Segments().Error("Failed to create segment", "error", err)
		return nil, err
	}
	s.cache.InvalidateSegments()
	s.logger.Segments().Info("Segment created", "segmentId", seg.ID, "priority", seg.Priority)
	return seg, nil
}

// Update replaces the name and configuration of a segment.
func (s *SegmentService) Update(seg *campaigns.Segment) (*campaigns.Segment, error) {
	if err := validateSegment(seg); err != nil {
		return nil, err
	}
	if err := s.repo.Update(seg); err != nil {
		if !errors.Is(err, campaigns.ErrSegmentNotFound) {
			s.logger.Segments().Error("Failed to update segment", "error", err, "segmentId", seg.ID)
		}
		return nil, err
	}
	s.cache.InvalidateSegments()
	s.logger.Segments().Info("Segment updated", "segmentId", seg.ID)
	return s.repo.FindByID(seg.ID)
}

// Delete removes a segment; the remaining priorities are reindexed.
func (s *SegmentService) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		if !errors.Is(err, campaigns.ErrSegmentNotFound) {
			s.logger.Segments().Error("Failed to delete segment", "error", err, "segmentId", id)
		}
		return err
	}
	s.cache.InvalidateSegments()
	s.logger.Segments().Info("Segment deleted", "segmentId", id)
	return nil
}

// Reorder sets the catalog order and returns the reindexed catalog.
func (s *SegmentService) Reorder(ids []string) ([]*campaigns.Segment, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: segment ids are required", ErrInvalidSegment)
	}
	if err := s.repo.Reorder(ids); err != nil {
		s.logger.Segments().Error("Failed to reorder segments", "error", err)
		return nil, err
	}
	s.cache.InvalidateSegments()
	s.logger.Segments().Info("Segments reordered", "count", len(ids))
	return s.List()
}

func validateSegment(seg *campaigns.Segment) error {
	if seg == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidSegment)
	}
	seg.Name = strings.TrimSpace(seg.Name)
	if seg.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSegment)
	}
	cfg := seg.Configuration
	if cfg.MinPosts < 0 || cfg.MaxPosts < 0 || cfg.MinSessionPosts < 0 || cfg.MaxSessionPosts < 0 {
		return fmt.Errorf("%w: post counts must not be negative", ErrInvalidSegment)
	}
	if cfg.MaxPosts > 0 && cfg.MinPosts > cfg.MaxPosts {
		return fmt.Errorf("%w: min_posts exceeds max_posts", ErrInvalidSegment)
	}
	if cfg.MaxSessionPosts > 0 && cfg.MinSessionPosts > cfg.MaxSessionPosts {
		return fmt.Errorf("%w: min_session_posts exceeds max_session_posts", ErrInvalidSegment)
	}
	return nil
}
