package services

import (
	"strconv"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
)

// FrequencyPolicy is a resolved frequency configuration.
type FrequencyPolicy struct {
	Max     int
	Start   int
	Between int
	Reset   string
}

// FrequencyResult reports whether a prompt hit its display cap, and why.
type FrequencyResult struct {
	Capped bool   `json:"capped"`
	Reason string `json:"reason,omitempty"`
}

// FrequencyService applies prompt frequency caps.
type FrequencyService struct{}

// NewFrequencyService creates a new frequency engine.
func NewFrequencyService() *FrequencyService {
	return &FrequencyService{}
}

// ResolvePolicy expands presets and validates the reset unit.
func (s *FrequencyService) ResolvePolicy(opts campaigns.PromptOptions) FrequencyPolicy {
	var p FrequencyPolicy
	switch opts.Frequency {
	case campaigns.FrequencyOnce:
		p = FrequencyPolicy{Max: 1, Reset: campaigns.ResetMonth}
	case campaigns.FrequencyDaily:
		p = FrequencyPolicy{Max: 1, Reset: campaigns.ResetDay}
	case campaigns.FrequencyAlways:
		p = FrequencyPolicy{Reset: campaigns.ResetMonth}
	default:
		p = FrequencyPolicy{
			Max:     max(0, opts.FrequencyMax),
			Start:   max(0, opts.FrequencyStart),
			Between: max(0, opts.FrequencyBetween),
			Reset:   opts.FrequencyReset,
		}
	}
	switch p.Reset {
	case campaigns.ResetDay, campaigns.ResetWeek, campaigns.ResetMonth:
	default:
		p.Reset = campaigns.ResetMonth
	}
	return p
}

// WindowStart returns now minus one reset unit, using calendar arithmetic.
func WindowStart(reset string, now time.Time) time.Time {
	switch reset {
	case campaigns.ResetDay:
		return now.AddDate(0, 0, -1)
	case campaigns.ResetWeek:
		return now.AddDate(0, 0, -7)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// IsFrequencyCapReached checks the prompt's policy against its prompt_seen
// events within the reset window and the reader's total page views.
func (s *FrequencyService) IsFrequencyCapReached(prompt *campaigns.Prompt, seenEvents []*reader.Event, totalViews int, now time.Time) FrequencyResult {
	p := s.ResolvePolicy(prompt.Options)
	since := WindowStart(p.Reset, now)

	seen := 0
	for _, ev := range seenEvents {
		if ev.Type != reader.EventPromptSeen || string(ev.Context) != prompt.ID {
			continue
		}
		if ev.DateCreated.Before(since) {
			continue
		}
		seen++
	}

	if p.Between > 0 && max(0, totalViews-(p.Start+1))%(p.Between+1) > 0 {
		return FrequencyResult{Capped: true, Reason: "only once every " + strconv.Itoa(p.Between+1) + " pageviews"}
	}
	if totalViews > 0 && totalViews <= p.Start {
		return FrequencyResult{Capped: true, Reason: "minimum pageviews not yet met"}
	}
	if p.Max > 0 && seen >= p.Max {
		return FrequencyResult{Capped: true, Reason: "max displays met for " + p.Reset}
	}
	return FrequencyResult{}
}
