package services

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
)

func snapshotOf(r *reader.Reader, events ...*reader.Event) ReaderSnapshot {
	if r == nil {
		r = reader.NewReader("c1", testNow)
	}
	return ReaderSnapshot{Reader: r, Events: events, Now: testNow}
}

func segmentWith(cfg campaigns.SegmentConfiguration) *campaigns.Segment {
	return &campaigns.Segment{ID: "s", Configuration: cfg}
}

func TestMatchesPredicates(t *testing.T) {
	matcher := NewSegmentMatcherService(testMatcherConfig())

	favorite := reader.NewReader("c1", testNow)
	favorite.ReaderData.Views["post"] = 3
	favorite.ReaderData.Category = map[string]int{"5": 3, "7": 1}

	tied := reader.NewReader("c1", testNow)
	tied.ReaderData.Views["post"] = 4
	tied.ReaderData.Category = map[string]int{"5": 2, "7": 2}

	tests := []struct {
		name string
		cfg  campaigns.SegmentConfiguration
		snap ReaderSnapshot
		want bool
	}{
		{"empty configuration matches", campaigns.SegmentConfiguration{}, snapshotOf(nil), true},
		{"disabled never matches", campaigns.SegmentConfiguration{IsDisabled: true}, snapshotOf(nil), false},
		{
			"min posts met",
			campaigns.SegmentConfiguration{MinPosts: 2},
			snapshotOf(nil, postView("1", testNow), postView("2", testNow.Add(-time.Hour))),
			true,
		},
		{
			"repeat views of one post count once",
			campaigns.SegmentConfiguration{MinPosts: 2},
			snapshotOf(nil, postView("1", testNow), postView("1", testNow.Add(-time.Hour))),
			false,
		},
		{
			"views older than the window are ignored",
			campaigns.SegmentConfiguration{MinPosts: 2},
			snapshotOf(nil, postView("1", testNow), postView("2", testNow.AddDate(0, 0, -31))),
			false,
		},
		{
			"max posts exceeded",
			campaigns.SegmentConfiguration{MaxPosts: 1},
			snapshotOf(nil, postView("1", testNow), postView("2", testNow)),
			false,
		},
		{
			"session posts stop at a long gap",
			campaigns.SegmentConfiguration{MinSessionPosts: 3},
			snapshotOf(nil,
				postView("3", testNow.Add(-5*time.Minute)),
				postView("2", testNow.Add(-20*time.Minute)),
				postView("1", testNow.Add(-2*time.Hour))),
			false,
		},
		{
			"max session posts",
			campaigns.SegmentConfiguration{MaxSessionPosts: 1},
			snapshotOf(nil,
				postView("2", testNow.Add(-5*time.Minute)),
				postView("1", testNow.Add(-10*time.Minute))),
			false,
		},
		{
			"subscribed by event",
			campaigns.SegmentConfiguration{IsSubscribed: true},
			snapshotOf(nil, event(reader.EventSubscription, "newsletter", testNow)),
			true,
		},
		{
			"subscribed by email referer",
			campaigns.SegmentConfiguration{IsSubscribed: true},
			ReaderSnapshot{Reader: reader.NewReader("c1", testNow), RefererURL: "https://site.test/?UTM_MEDIUM=Email", Now: testNow},
			true,
		},
		{
			"not subscribed",
			campaigns.SegmentConfiguration{IsNotSubscribed: true},
			snapshotOf(nil, event(reader.EventSubscription, "newsletter", testNow)),
			false,
		},
		{
			"donor when last donation event is a donation",
			campaigns.SegmentConfiguration{IsDonor: true},
			snapshotOf(nil,
				event(reader.EventDonation, "", testNow),
				event(reader.EventDonationCancelled, "", testNow.Add(-time.Hour))),
			true,
		},
		{
			"former donor after cancellation",
			campaigns.SegmentConfiguration{IsFormerDonor: true},
			snapshotOf(nil,
				event(reader.EventDonationCancelled, "", testNow),
				event(reader.EventDonation, "", testNow.Add(-time.Hour))),
			true,
		},
		{
			"cancelled donor is not a donor",
			campaigns.SegmentConfiguration{IsDonor: true},
			snapshotOf(nil,
				event(reader.EventDonationCancelled, "", testNow),
				event(reader.EventDonation, "", testNow.Add(-time.Hour))),
			false,
		},
		{
			"logged in",
			campaigns.SegmentConfiguration{IsLoggedIn: true},
			snapshotOf(nil, event(reader.EventUserAccount, "42", testNow)),
			true,
		},
		{
			"not logged in",
			campaigns.SegmentConfiguration{IsNotLoggedIn: true},
			snapshotOf(nil, event(reader.EventUserAccount, "42", testNow)),
			false,
		},
		{
			"favorite category",
			campaigns.SegmentConfiguration{FavoriteCategories: []string{"5"}},
			snapshotOf(favorite),
			true,
		},
		{
			"tied favorite category",
			campaigns.SegmentConfiguration{FavoriteCategories: []string{"5", "7"}},
			snapshotOf(tied),
			false,
		},
		{
			"favorite category needs two views",
			campaigns.SegmentConfiguration{FavoriteCategories: []string{"5"}},
			snapshotOf(reader.NewReader("c1", testNow)),
			false,
		},
		{
			"referrer subdomain allowed",
			campaigns.SegmentConfiguration{Referrers: "Facebook.com, twitter.com"},
			ReaderSnapshot{Reader: reader.NewReader("c1", testNow), PageRefererURL: "https://m.facebook.com/story", Now: testNow},
			true,
		},
		{
			"referrer www stripped",
			campaigns.SegmentConfiguration{Referrers: "www.google.com"},
			ReaderSnapshot{Reader: reader.NewReader("c1", testNow), PageRefererURL: "https://www.google.com/", Now: testNow},
			true,
		},
		{
			"lookalike domain is not a subdomain",
			campaigns.SegmentConfiguration{Referrers: "facebook.com"},
			ReaderSnapshot{Reader: reader.NewReader("c1", testNow), PageRefererURL: "https://notfacebook.com/", Now: testNow},
			false,
		},
		{
			"empty referrer fails allow-list",
			campaigns.SegmentConfiguration{Referrers: "facebook.com"},
			snapshotOf(nil),
			false,
		},
		{
			"deny-list blocks",
			campaigns.SegmentConfiguration{ReferrersNot: "facebook.com"},
			ReaderSnapshot{Reader: reader.NewReader("c1", testNow), PageRefererURL: "https://l.facebook.com/", Now: testNow},
			false,
		},
		{
			"empty referrer passes deny-list",
			campaigns.SegmentConfiguration{ReferrersNot: "facebook.com"},
			snapshotOf(nil),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.Matches(segmentWith(tt.cfg), tt.snap); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionPostViewCount(t *testing.T) {
	matcher := NewSegmentMatcherService(testMatcherConfig())

	events := []*reader.Event{
		postView("3", testNow.Add(-10*time.Minute)),
		postView("2", testNow.Add(-50*time.Minute)),
		postView("1", testNow.Add(-3*time.Hour)),
	}
	if got := matcher.SessionPostViewCount(events, testNow); got != 2 {
		t.Errorf("SessionPostViewCount() = %d, want 2", got)
	}

	// newest view already outside the session
	if got := matcher.SessionPostViewCount(events, testNow.Add(2*time.Hour)); got != 0 {
		t.Errorf("SessionPostViewCount() after timeout = %d, want 0", got)
	}
}

func TestMatchesNilSegment(t *testing.T) {
	matcher := NewSegmentMatcherService(testMatcherConfig())
	if matcher.Matches(nil, snapshotOf(nil)) {
		t.Error("nil segment must not match")
	}
}
