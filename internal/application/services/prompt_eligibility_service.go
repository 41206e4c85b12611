package services

import (
	"math"
	"net/url"
	"slices"
	"strings"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
)

// EligibilityInput is everything needed to decide one prompt for one reader.
type EligibilityInput struct {
	Prompt                *campaigns.Prompt
	Segments              campaigns.SegmentSet
	BestPrioritySegmentID string
	Snapshot              ReaderSnapshot
	ViewAs                *campaigns.ViewAs
}

// PromptEligibilityService decides per-prompt visibility and resolves
// competition for exclusive display slots.
type PromptEligibilityService struct {
	matcher   *SegmentMatcherService
	frequency *FrequencyService
}

// NewPromptEligibilityService creates a new eligibility evaluator.
func NewPromptEligibilityService(matcher *SegmentMatcherService, frequency *FrequencyService) *PromptEligibilityService {
	return &PromptEligibilityService{matcher: matcher, frequency: frequency}
}

// ShouldDisplay runs UTM suppression, segmentation and the frequency cap in
// that order. The first failing check suppresses the prompt and records its
// reason in ec.
func (s *PromptEligibilityService) ShouldDisplay(in EligibilityInput, ec *campaigns.EvaluationContext) bool {
	prompt := in.Prompt
	if prompt == nil {
		return false
	}

	if source := strings.TrimSpace(prompt.Options.UTMSuppression); source != "" && refererHasUTMSource(in.Snapshot.RefererURL, source) {
		ec.Suppress(prompt.ID, "suppressed by utm_source %q", source)
		return false
	}

	if !s.passesSegmentation(in, ec) {
		return false
	}

	var totalViews int
	if in.Snapshot.Reader != nil {
		totalViews = in.Snapshot.Reader.TotalViews()
	}
	if result := s.frequency.IsFrequencyCapReached(prompt, seenEventsFor(in.Snapshot.Events, prompt.ID), totalViews, in.Snapshot.Now); result.Capped {
		ec.Suppress(prompt.ID, "frequency cap: %s", result.Reason)
		return false
	}

	return true
}

func (s *PromptEligibilityService) passesSegmentation(in EligibilityInput, ec *campaigns.EvaluationContext) bool {
	prompt := in.Prompt
	assigned := prompt.SegmentIDs()

	if in.ViewAs.HasSegment() {
		viewAs := strings.TrimSpace(in.ViewAs.Segment)
		switch {
		case viewAs == campaigns.ViewAsEveryone:
			if len(assigned) > 0 {
				ec.Suppress(prompt.ID, "viewing as everyone; prompt targets segments %s", strings.Join(assigned, ", "))
				return false
			}
			return true
		case len(assigned) == 0, slices.Contains(assigned, viewAs):
			return true
		case in.Segments[viewAs] == nil:
			// the previewed segment was deleted
			return true
		}
		ec.Suppress(prompt.ID, "viewing as segment %s; prompt targets segments %s", viewAs, strings.Join(assigned, ", "))
		return false
	}

	if len(assigned) == 0 {
		return true
	}

	existing := existingSegments(assigned, in.Segments)
	if len(existing) == 0 {
		// every assigned segment was deleted: fall back to everyone
		return true
	}

	best := in.BestPrioritySegmentID
	if best != "" && slices.Contains(existing, best) && s.matcher.Matches(in.Segments[best], in.Snapshot) {
		return true
	}

	for _, id := range existing {
		if s.matcher.Matches(in.Segments[id], in.Snapshot) {
			if best == "" {
				ec.Suppress(prompt.ID, "reader matches segment %s but no best priority segment was resolved", id)
			} else {
				ec.Suppress(prompt.ID, "reader matches segment %s but segment %s has higher priority", id, best)
			}
			return false
		}
	}
	ec.Suppress(prompt.ID, "reader does not match segments %s", strings.Join(existing, ", "))
	return false
}

// ApplySlotPriority keeps at most one visible prompt per exclusive slot: the
// one whose assigned segment has the lowest priority, ties going to the first
// in input order. Decisions must be in the same order as prompts.
func (s *PromptEligibilityService) ApplySlotPriority(prompts []*campaigns.Prompt, decisions []campaigns.Decision, segments campaigns.SegmentSet, ec *campaigns.EvaluationContext) []campaigns.Decision {
	winners := make(map[campaigns.Slot]int)
	for i, prompt := range prompts {
		if i >= len(decisions) || !decisions[i].Visible {
			continue
		}
		slot, ok := prompt.Slot()
		if !ok {
			continue
		}
		current, exists := winners[slot]
		if !exists {
			winners[slot] = i
			continue
		}
		if PromptPriority(prompt, segments) < PromptPriority(prompts[current], segments) {
			decisions[current].Visible = false
			ec.Suppress(prompts[current].ID, "another prompt (%s) with higher priority takes the %s slot", prompt.ID, slot)
			winners[slot] = i
		} else {
			decisions[i].Visible = false
			ec.Suppress(prompt.ID, "another prompt (%s) with higher priority takes the %s slot", prompts[current].ID, slot)
		}
	}
	return decisions
}

// PromptPriority is the lowest priority among the prompt's existing assigned
// segments, or +Inf for an unsegmented prompt.
func PromptPriority(prompt *campaigns.Prompt, segments campaigns.SegmentSet) float64 {
	best := math.Inf(1)
	for _, id := range prompt.SegmentIDs() {
		if seg, ok := segments[id]; ok && float64(seg.Priority) < best {
			best = float64(seg.Priority)
		}
	}
	return best
}

func existingSegments(ids []string, segments campaigns.SegmentSet) []string {
	var out []string
	for _, id := range ids {
		if _, ok := segments[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func seenEventsFor(events []*reader.Event, promptID string) []*reader.Event {
	var out []*reader.Event
	for _, ev := range events {
		if ev.Type == reader.EventPromptSeen && string(ev.Context) == promptID {
			out = append(out, ev)
		}
	}
	return out
}

// refererHasUTMSource reports whether the decoded referer carries utm_source=<source>.
func refererHasUTMSource(refererURL, source string) bool {
	if refererURL == "" {
		return false
	}
	decoded, err := url.QueryUnescape(refererURL)
	if err != nil {
		decoded = refererURL
	}
	return strings.Contains(strings.ToLower(decoded), "utm_source="+strings.ToLower(source))
}
