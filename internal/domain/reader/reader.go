// Package reader defines readers, their append-only event log and the
// repository contract the decision engine consumes. Persistence details live in
// the infrastructure layer; the engine only sees this interface.
package reader

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// EventType partitions the reader event log.
type EventType string

const (
	EventView              EventType = "view"
	EventPrompt            EventType = "prompt"
	EventPromptSeen        EventType = "prompt_seen"
	EventSubscription      EventType = "subscription"
	EventDonation          EventType = "donation"
	EventDonationCancelled EventType = "donation_cancelled"
	EventUserAccount       EventType = "user_account"
)

// PersistentEventTypes are never pruned.
var PersistentEventTypes = []EventType{EventSubscription, EventDonation}

// TemporaryEventTypes are subject to periodic pruning.
var TemporaryEventTypes = []EventType{EventView, EventPrompt, EventPromptSeen, EventDonationCancelled, EventUserAccount}

// AllEventTypes lists every known event type.
var AllEventTypes = append(slices.Clone(TemporaryEventTypes), PersistentEventTypes...)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return slices.Contains(AllEventTypes, t)
}

// IsPersistent reports whether events of this type survive pruning.
func (t EventType) IsPersistent() bool {
	return slices.Contains(PersistentEventTypes, t)
}

// ReaderData holds the counters updated as a side effect of accepted view events.
type ReaderData struct {
	Views    map[string]int `json:"views"`
	Category map[string]int `json:"category"`
}

// Reader is the profile record of a single client id.
type Reader struct {
	ClientID     string     `json:"client_id"`
	DateCreated  time.Time  `json:"date_created"`
	DateModified time.Time  `json:"date_modified"`
	ReaderData   ReaderData `json:"reader_data"`
	IsPreview    bool       `json:"is_preview"`
}

// NewReader returns a blank, unsaved reader for clientID.
func NewReader(clientID string, now time.Time) *Reader {
	return &Reader{
		ClientID:     clientID,
		DateCreated:  now,
		DateModified: now,
		ReaderData: ReaderData{
			Views:    make(map[string]int),
			Category: make(map[string]int),
		},
	}
}

// TotalViews sums the view counters across every tracked context.
func (r *Reader) TotalViews() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, count := range r.ReaderData.Views {
		total += count
	}
	return total
}

// Event is a single immutable entry of a reader's event log.
type Event struct {
	ID          string         `json:"id,omitempty"`
	ClientID    string         `json:"client_id"`
	DateCreated time.Time      `json:"date_created"`
	Type        EventType      `json:"type"`
	Context     EventContext   `json:"context,omitempty"`
	Value       map[string]any `json:"value,omitempty"`
}

// EventContext is the optional event scope (post type, prompt id, account id).
// It arrives as a string, a number or null and is kept as text.
type EventContext string

// UnmarshalJSON accepts strings, numbers and null.
func (c *EventContext) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = EventContext(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("event context must be a string or number: %w", err)
	}
	*c = EventContext(n.String())
	return nil
}

// PostID extracts value.post_id as text, or "" when absent.
func (e *Event) PostID() string {
	if e == nil || e.Value == nil {
		return ""
	}
	return scalarString(e.Value["post_id"])
}

// Categories extracts value.categories, which may be a csv string or a list.
func (e *Event) Categories() []string {
	if e == nil || e.Value == nil {
		return nil
	}
	var out []string
	switch v := e.Value["categories"].(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range v {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	return out
}

// RequestKey returns a canonical encoding of value.request, used to spot
// repeated views of non-post pages.
func (e *Event) RequestKey() string {
	if e == nil || e.Value == nil {
		return ""
	}
	req, ok := e.Value["request"]
	if !ok || req == nil {
		return ""
	}
	// encoding/json sorts map keys, so equal objects encode identically
	b, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return string(b)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Repository is the event store contract.
type Repository interface {
	// GetReader returns the stored profile or a blank unsaved one.
	GetReader(clientID string) (*Reader, error)
	// GetReaderEvents returns events newest-first. Nil types selects the temporary types only.
	GetReaderEvents(clientID string, types []EventType, contexts []string) ([]*Event, error)
	// SaveReaderEvents appends events after view dedup and returns how many were accepted.
	SaveReaderEvents(clientID string, events []*Event) (int, error)
	// SaveReader upserts the reader profile.
	SaveReader(r *Reader) error
	// FindClientIDsByEvent lists distinct client ids with an event of eventType in one of contexts.
	FindClientIDsByEvent(eventType EventType, contexts []string, limit int) ([]string, error)
}
