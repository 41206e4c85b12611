// Package campaigns defines segments, prompts and the evaluation records the
// decision engine produces.
package campaigns

import (
	"sort"
	"strings"
	"time"
)

// Segment is a named, priority-ordered audience rule set. Lower priority wins.
type Segment struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Priority      int                  `json:"priority"`
	Configuration SegmentConfiguration `json:"configuration"`
	Created       time.Time            `json:"created,omitempty"`
	Changed       time.Time            `json:"changed,omitempty"`
}

// SegmentConfiguration holds the predicates of a segment. A zero value means
// the predicate is not checked.
type SegmentConfiguration struct {
	MinPosts           int      `json:"min_posts" mapstructure:"min_posts"`
	MaxPosts           int      `json:"max_posts" mapstructure:"max_posts"`
	MinSessionPosts    int      `json:"min_session_posts" mapstructure:"min_session_posts"`
	MaxSessionPosts    int      `json:"max_session_posts" mapstructure:"max_session_posts"`
	IsSubscribed       bool     `json:"is_subscribed" mapstructure:"is_subscribed"`
	IsNotSubscribed    bool     `json:"is_not_subscribed" mapstructure:"is_not_subscribed"`
	IsDonor            bool     `json:"is_donor" mapstructure:"is_donor"`
	IsNotDonor         bool     `json:"is_not_donor" mapstructure:"is_not_donor"`
	IsFormerDonor      bool     `json:"is_former_donor" mapstructure:"is_former_donor"`
	IsLoggedIn         bool     `json:"is_logged_in" mapstructure:"is_logged_in"`
	IsNotLoggedIn      bool     `json:"is_not_logged_in" mapstructure:"is_not_logged_in"`
	FavoriteCategories []string `json:"favorite_categories" mapstructure:"favorite_categories"`
	Referrers          string   `json:"referrers" mapstructure:"referrers"`
	ReferrersNot       string   `json:"referrers_not" mapstructure:"referrers_not"`
	IsDisabled         bool     `json:"is_disabled" mapstructure:"is_disabled"`
}

// ReferrerList splits the allow-list into normalized domains.
func (c SegmentConfiguration) ReferrerList() []string {
	return splitDomains(c.Referrers)
}

// ReferrerNotList splits the deny-list into normalized domains.
func (c SegmentConfiguration) ReferrerNotList() []string {
	return splitDomains(c.ReferrersNot)
}

func splitDomains(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		part = strings.TrimPrefix(part, "www.")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SegmentSet indexes segments by id.
type SegmentSet map[string]*Segment

// NewSegmentSet indexes the given segments.
func NewSegmentSet(segments []*Segment) SegmentSet {
	set := make(SegmentSet, len(segments))
	for _, s := range segments {
		if s != nil && s.ID != "" {
			set[s.ID] = s
		}
	}
	return set
}

// Sorted returns the segments ordered by (priority, id).
func (s SegmentSet) Sorted() []*Segment {
	out := make([]*Segment, 0, len(s))
	for _, seg := range s {
		out = append(out, seg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Reindex assigns priority == position for the given order.
func Reindex(segments []*Segment) {
	for i, s := range segments {
		s.Priority = i
	}
}
