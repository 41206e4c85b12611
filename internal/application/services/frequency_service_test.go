package services

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
)

func TestResolvePolicy(t *testing.T) {
	svc := NewFrequencyService()

	tests := []struct {
		name string
		opts campaigns.PromptOptions
		want FrequencyPolicy
	}{
		{"once", campaigns.PromptOptions{Frequency: "once", FrequencyMax: 9}, FrequencyPolicy{Max: 1, Reset: "month"}},
		{"daily", campaigns.PromptOptions{Frequency: "daily"}, FrequencyPolicy{Max: 1, Reset: "day"}},
		{"always", campaigns.PromptOptions{Frequency: "always", FrequencyStart: 3}, FrequencyPolicy{Reset: "month"}},
		{
			"custom keeps raw fields",
			campaigns.PromptOptions{Frequency: "custom", FrequencyMax: 2, FrequencyStart: 1, FrequencyBetween: 2, FrequencyReset: "week"},
			FrequencyPolicy{Max: 2, Start: 1, Between: 2, Reset: "week"},
		},
		{"invalid reset becomes month", campaigns.PromptOptions{Frequency: "custom", FrequencyReset: "year"}, FrequencyPolicy{Reset: "month"}},
		{"negative values clamp", campaigns.PromptOptions{Frequency: "custom", FrequencyMax: -1, FrequencyReset: "day"}, FrequencyPolicy{Reset: "day"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.ResolvePolicy(tt.opts); got != tt.want {
				t.Errorf("ResolvePolicy() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWindowStartUsesCalendarArithmetic(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	if got, want := WindowStart("month", now), now.AddDate(0, -1, 0); !got.Equal(want) {
		t.Errorf("month window = %v, want %v", got, want)
	}
	if got, want := WindowStart("week", now), now.AddDate(0, 0, -7); !got.Equal(want) {
		t.Errorf("week window = %v, want %v", got, want)
	}
	if got, want := WindowStart("day", now), now.AddDate(0, 0, -1); !got.Equal(want) {
		t.Errorf("day window = %v, want %v", got, want)
	}
}

func seenAt(promptID string, at time.Time) *reader.Event {
	return event(reader.EventPromptSeen, promptID, at)
}

func TestOncePromptCappedAfterSeen(t *testing.T) {
	svc := NewFrequencyService()
	p := &campaigns.Prompt{ID: "p1", Options: campaigns.PromptOptions{Frequency: "once"}}

	if res := svc.IsFrequencyCapReached(p, nil, 1, testNow); res.Capped {
		t.Fatalf("unseen prompt capped: %s", res.Reason)
	}
	seen := []*reader.Event{seenAt("p1", testNow.Add(-time.Hour))}
	if res := svc.IsFrequencyCapReached(p, seen, 2, testNow); !res.Capped {
		t.Error("once prompt not capped after being seen")
	}
	// seen events of other prompts do not count
	other := []*reader.Event{seenAt("p2", testNow.Add(-time.Hour))}
	if res := svc.IsFrequencyCapReached(p, other, 2, testNow); res.Capped {
		t.Error("seen event of another prompt capped this one")
	}
}

func TestDailyPromptEligibleAfterReset(t *testing.T) {
	svc := NewFrequencyService()
	p := &campaigns.Prompt{ID: "p1", Options: campaigns.PromptOptions{Frequency: "daily"}}
	seen := []*reader.Event{seenAt("p1", testNow)}

	for _, offset := range []time.Duration{0, time.Minute, 12 * time.Hour, 23 * time.Hour} {
		if res := svc.IsFrequencyCapReached(p, seen, 5, testNow.Add(offset)); !res.Capped {
			t.Errorf("daily prompt visible %v after being seen", offset)
		}
	}
	if res := svc.IsFrequencyCapReached(p, seen, 5, testNow.Add(25*time.Hour)); res.Capped {
		t.Errorf("daily prompt still capped after 25h: %s", res.Reason)
	}
}

func TestCustomFrequencyScenario(t *testing.T) {
	svc := NewFrequencyService()
	p := &campaigns.Prompt{ID: "p1", Options: campaigns.PromptOptions{
		Frequency:        "custom",
		FrequencyMax:     2,
		FrequencyStart:   1,
		FrequencyBetween: 2,
		FrequencyReset:   "week",
	}}

	var seen []*reader.Event
	visibleAt := func(views int, now time.Time) bool {
		return !svc.IsFrequencyCapReached(p, seen, views, now).Capped
	}

	if visibleAt(1, testNow) {
		t.Fatal("visible after 1 pageview; start not met")
	}
	if !visibleAt(2, testNow) {
		t.Fatal("not visible on 2nd pageview")
	}
	seen = append(seen, seenAt("p1", testNow))

	if visibleAt(3, testNow) || visibleAt(4, testNow) {
		t.Fatal("visible within the between gap")
	}
	if !visibleAt(5, testNow) {
		t.Fatal("not visible on the 3rd pageview after being seen")
	}
	seen = append(seen, seenAt("p1", testNow))

	if visibleAt(8, testNow) {
		t.Fatal("visible after max displays in the week")
	}
	if !visibleAt(8, testNow.AddDate(0, 0, 7).Add(time.Hour)) {
		t.Fatal("not visible again after the weekly reset")
	}
}

func TestAlwaysNeverCapped(t *testing.T) {
	svc := NewFrequencyService()
	p := &campaigns.Prompt{ID: "p1", Options: campaigns.PromptOptions{Frequency: "always"}}
	seen := []*reader.Event{seenAt("p1", testNow), seenAt("p1", testNow)}
	if res := svc.IsFrequencyCapReached(p, seen, 10, testNow); res.Capped {
		t.Errorf("always prompt capped: %s", res.Reason)
	}
}
