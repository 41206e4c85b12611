package campaigns

import (
	"slices"
	"strings"
)

// Frequency presets
const (
	FrequencyOnce   = "once"
	FrequencyDaily  = "daily"
	FrequencyAlways = "always"
	FrequencyTest   = "test"
	FrequencyManual = "manual"
	FrequencyCustom = "custom"
)

// Frequency reset units
const (
	ResetDay   = "day"
	ResetWeek  = "week"
	ResetMonth = "month"
)

// Placements
const (
	PlacementCenter      = "center"
	PlacementTop         = "top"
	PlacementBottom      = "bottom"
	PlacementInline      = "inline"
	PlacementAboveHeader = "above_header"
	PlacementManual      = "manual"
)

// ViewAsEveryone is the view-as segment value that previews the audience outside every segment.
const ViewAsEveryone = "everyone"

var overlayPlacements = []string{
	PlacementCenter, PlacementTop, PlacementBottom,
	"top_left", "top_right", "center_left", "center_right", "bottom_left", "bottom_right",
}

// Prompt is a displayable campaign unit.
type Prompt struct {
	ID      string        `json:"id" mapstructure:"id"`
	Title   string        `json:"title" mapstructure:"title"`
	Body    string        `json:"body,omitempty" mapstructure:"body"`
	Options PromptOptions `json:"options" mapstructure:"options"`
}

// PromptOptions carries placement, targeting and frequency policy.
type PromptOptions struct {
	Frequency         string `json:"frequency" mapstructure:"frequency"`
	FrequencyMax      int    `json:"frequency_max" mapstructure:"frequency_max"`
	FrequencyStart    int    `json:"frequency_start" mapstructure:"frequency_start"`
	FrequencyBetween  int    `json:"frequency_between" mapstructure:"frequency_between"`
	FrequencyReset    string `json:"frequency_reset" mapstructure:"frequency_reset"`
	Placement         string `json:"placement" mapstructure:"placement"`
	UTMSuppression    string `json:"utm_suppression" mapstructure:"utm_suppression"`
	SelectedSegmentID string `json:"selected_segment_id" mapstructure:"selected_segment_id"`
}

// SegmentIDs splits selected_segment_id. An empty result means everyone.
func (p *Prompt) SegmentIDs() []string {
	var ids []string
	for _, part := range strings.Split(p.Options.SelectedSegmentID, ",") {
		if part = strings.TrimSpace(part); part != "" && !slices.Contains(ids, part) {
			ids = append(ids, part)
		}
	}
	return ids
}

// SlotKind names a mutually exclusive display slot.
type SlotKind string

const (
	SlotOverlay     SlotKind = "overlay"
	SlotAboveHeader SlotKind = "above_header"
	SlotCustom      SlotKind = "custom"
)

// Slot identifies one exclusive display slot on a page.
type Slot struct {
	Kind SlotKind
	Name string
}

// String names the slot for suppression reasons.
func (s Slot) String() string {
	if s.Kind == SlotCustom {
		return "custom placement " + s.Name
	}
	return string(s.Kind)
}

// Slot returns the exclusive display slot of the prompt, if it occupies one.
func (p *Prompt) Slot() (Slot, bool) {
	placement := strings.ToLower(strings.TrimSpace(p.Options.Placement))
	switch {
	case slices.Contains(overlayPlacements, placement):
		return Slot{Kind: SlotOverlay, Name: string(SlotOverlay)}, true
	case placement == PlacementAboveHeader:
		return Slot{Kind: SlotAboveHeader, Name: PlacementAboveHeader}, true
	case isCustomPlacement(placement):
		return Slot{Kind: SlotCustom, Name: placement}, true
	}
	return Slot{}, false
}

func isCustomPlacement(placement string) bool {
	rest, ok := strings.CutPrefix(placement, "custom")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ViewAs is the admin preview override.
type ViewAs struct {
	Segment string `json:"segment,omitempty"`
}

// HasSegment reports whether the override names a segment.
func (v *ViewAs) HasSegment() bool {
	return v != nil && strings.TrimSpace(v.Segment) != ""
}
