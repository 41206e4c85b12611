package services

import (
	"strings"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
)

// SegmentSelectorService finds the best-priority segment a reader matches.
type SegmentSelectorService struct {
	matcher *SegmentMatcherService
}

// NewSegmentSelectorService creates a new segment selector.
func NewSegmentSelectorService(matcher *SegmentMatcherService) *SegmentSelectorService {
	return &SegmentSelectorService{matcher: matcher}
}

// BestPrioritySegment returns the id of the lowest-priority matching segment,
// or "" when none matches. A view-as segment is returned as is, without
// evaluation.
func (s *SegmentSelectorService) BestPrioritySegment(segments campaigns.SegmentSet, snap ReaderSnapshot, viewAs *campaigns.ViewAs) string {
	if viewAs.HasSegment() {
		return strings.TrimSpace(viewAs.Segment)
	}
	// sorted by (priority, id): the first match is the best one
	for _, seg := range segments.Sorted() {
		if s.matcher.Matches(seg, snap) {
			return seg.ID
		}
	}
	return ""
}

// MatchingSegments lists every segment the reader matches, best first.
func (s *SegmentSelectorService) MatchingSegments(segments campaigns.SegmentSet, snap ReaderSnapshot) []*campaigns.Segment {
	var out []*campaigns.Segment
	for _, seg := range segments.Sorted() {
		if s.matcher.Matches(seg, snap) {
			out = append(out, seg)
		}
	}
	return out
}
