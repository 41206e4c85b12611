// Package services provides the decision engine and the application services around it
package services

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/pkg/config"
)

// MatcherConfig holds the windows used by segment predicates.
type MatcherConfig struct {
	PostViewContext string
	PostViewsWindow time.Duration
	SessionTimeout  time.Duration
}

// DefaultMatcherConfig reads the matcher windows from the config package.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		PostViewContext: config.PostViewContext,
		PostViewsWindow: config.PostViewsWindow,
		SessionTimeout:  config.SessionTimeout,
	}
}

// SegmentMatcherService evaluates a single segment against a reader.
// This is a pure domain service with no infrastructure dependencies.
type SegmentMatcherService struct {
	cfg MatcherConfig
}

// NewSegmentMatcherService creates a new segment matcher.
func NewSegmentMatcherService(cfg MatcherConfig) *SegmentMatcherService {
	return &SegmentMatcherService{cfg: cfg}
}

// ReaderSnapshot is the reader state a match is evaluated against. Events are
// newest-first and should include every event type.
type ReaderSnapshot struct {
	Reader         *reader.Reader
	Events         []*reader.Event
	RefererURL     string
	PageRefererURL string
	Now            time.Time
}

// Matches reports whether the reader satisfies every configured predicate of
// the segment. Unset predicates are skipped.
func (s *SegmentMatcherService) Matches(segment *campaigns.Segment, snap ReaderSnapshot) bool {
	if segment == nil {
		return false
	}
	cfg := segment.Configuration
	if cfg.IsDisabled {
		return false
	}

	if cfg.MinPosts > 0 || cfg.MaxPosts > 0 {
		posts := s.PostViewCount(snap.Events, snap.Now)
		if cfg.MinPosts > 0 && posts < cfg.MinPosts {
			return false
		}
		if cfg.MaxPosts > 0 && posts > cfg.MaxPosts {
			return false
		}
	}

	if cfg.MinSessionPosts > 0 || cfg.MaxSessionPosts > 0 {
		sessionPosts := s.SessionPostViewCount(snap.Events, snap.Now)
		if cfg.MinSessionPosts > 0 && sessionPosts < cfg.MinSessionPosts {
			return false
		}
		if cfg.MaxSessionPosts > 0 && sessionPosts > cfg.MaxSessionPosts {
			return false
		}
	}

	if cfg.IsSubscribed || cfg.IsNotSubscribed {
		subscribed := IsSubscriber(snap.Events, snap.RefererURL)
		if cfg.IsSubscribed && !subscribed {
			return false
		}
		if cfg.IsNotSubscribed && subscribed {
			return false
		}
	}

	if cfg.IsDonor || cfg.IsNotDonor || cfg.IsFormerDonor {
		last := lastDonationEvent(snap.Events)
		donor := last == reader.EventDonation
		if cfg.IsDonor && !donor {
			return false
		}
		if cfg.IsNotDonor && donor {
			return false
		}
		if cfg.IsFormerDonor && last != reader.EventDonationCancelled {
			return false
		}
	}

	if cfg.IsLoggedIn || cfg.IsNotLoggedIn {
		loggedIn := hasEventType(snap.Events, reader.EventUserAccount)
		if cfg.IsLoggedIn && !loggedIn {
			return false
		}
		if cfg.IsNotLoggedIn && loggedIn {
			return false
		}
	}

	if len(cfg.FavoriteCategories) > 0 {
		favorite, ok := s.FavoriteCategory(snap.Reader)
		if !ok || !slices.Contains(cfg.FavoriteCategories, favorite) {
			return false
		}
	}

	if allow := cfg.ReferrerList(); len(allow) > 0 {
		host := refererHost(snap.PageRefererURL)
		if host == "" || !hostMatchesAny(host, allow) {
			return false
		}
	}

	if deny := cfg.ReferrerNotList(); len(deny) > 0 {
		if host := refererHost(snap.PageRefererURL); host != "" && hostMatchesAny(host, deny) {
			return false
		}
	}

	return true
}

// PostViewCount counts distinct posts viewed within the post views window.
func (s *SegmentMatcherService) PostViewCount(events []*reader.Event, now time.Time) int {
	since := now.Add(-s.cfg.PostViewsWindow)
	seen := make(map[string]bool)
	for _, ev := range events {
		if !s.isPostView(ev) || ev.DateCreated.Before(since) {
			continue
		}
		if id := ev.PostID(); id != "" {
			seen[id] = true
		}
	}
	return len(seen)
}

// SessionPostViewCount counts post views in the current session. The session is
// the run of views, walking back from the newest, with no gap longer than the
// session timeout; it is empty when the newest view is itself older than that.
func (s *SegmentMatcherService) SessionPostViewCount(events []*reader.Event, now time.Time) int {
	count := 0
	last := now
	for _, ev := range events {
		if !s.isPostView(ev) {
			continue
		}
		if last.Sub(ev.DateCreated) > s.cfg.SessionTimeout {
			break
		}
		count++
		last = ev.DateCreated
	}
	return count
}

func (s *SegmentMatcherService) isPostView(ev *reader.Event) bool {
	return ev.Type == reader.EventView && string(ev.Context) == s.cfg.PostViewContext
}

// FavoriteCategory returns the reader's most viewed category. There is no
// favorite below two tracked post views or when the top count is tied.
func (s *SegmentMatcherService) FavoriteCategory(r *reader.Reader) (string, bool) {
	if r == nil || r.ReaderData.Views[s.cfg.PostViewContext] < 2 {
		return "", false
	}
	var top, second int
	var favorite string
	for category, count := range r.ReaderData.Category {
		switch {
		case count > top:
			second = top
			top = count
			favorite = category
		case count > second:
			second = count
		}
	}
	if top == 0 || top <= second {
		return "", false
	}
	return favorite, true
}

// IsSubscriber reports a subscription event or an email campaign referer.
func IsSubscriber(events []*reader.Event, refererURL string) bool {
	if strings.Contains(strings.ToLower(refererURL), "utm_medium=email") {
		return true
	}
	return hasEventType(events, reader.EventSubscription)
}

// lastDonationEvent returns the type of the newest donation-related event.
func lastDonationEvent(events []*reader.Event) reader.EventType {
	var newest *reader.Event
	for _, ev := range events {
		if ev.Type != reader.EventDonation && ev.Type != reader.EventDonationCancelled {
			continue
		}
		if newest == nil || ev.DateCreated.After(newest.DateCreated) {
			newest = ev
		}
	}
	if newest == nil {
		return ""
	}
	return newest.Type
}

func hasEventType(events []*reader.Event, t reader.EventType) bool {
	for _, ev := range events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

// refererHost extracts the lowercased, www-stripped hostname of a referer.
func refererHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func hostMatchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
