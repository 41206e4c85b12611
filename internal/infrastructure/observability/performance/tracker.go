package performance

import (
	"sort"
	"sync"
	"time"
)

// OperationStats aggregates completed markers of one operation
type OperationStats struct {
	Operation   string        `json:"operation"`
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	Slow        int           `json:"slow"`
	Total       time.Duration `json:"total"`
	Max         time.Duration `json:"max"`
	LastSuccess time.Time     `json:"lastSuccess,omitempty"`
}

// Average returns the mean duration of the operation
func (s OperationStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Summary is a point-in-time view of the tracker
type Summary struct {
	Since      time.Time        `json:"since"`
	Operations []OperationStats `json:"operations"`
	Recent     []Marker         `json:"recent"`
}

// Tracker aggregates completed markers and keeps the most recent ones
type Tracker struct {
	mu            sync.Mutex
	started       time.Time
	slowThreshold time.Duration
	maxRecent     int
	recent        []Marker
	stats         map[string]*OperationStats
}

// NewTracker creates a tracker that counts operations slower than
// slowThreshold and retains the last maxRecent markers.
func NewTracker(slowThreshold time.Duration, maxRecent int) *Tracker {
	if maxRecent < 1 {
		maxRecent = 1
	}
	return &Tracker{
		started:       time.Now(),
		slowThreshold: slowThreshold,
		maxRecent:     maxRecent,
		stats:         make(map[string]*OperationStats),
	}
}

// StartOperation creates a marker that reports to the tracker on Complete
func (t *Tracker) StartOperation(operation, clientID string) *Marker {
	return &Marker{
		Operation: operation,
		ClientID:  clientID,
		StartTime: time.Now(),
		Success:   true, // Assume success until proven otherwise
		tracker:   t,
	}
}

func (t *Tracker) record(m *Marker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[m.Operation]
	if !ok {
		s = &OperationStats{Operation: m.Operation}
		t.stats[m.Operation] = s
	}
	s.Count++
	s.Total += m.Duration
	if m.Duration > s.Max {
		s.Max = m.Duration
	}
	if !m.Success {
		s.Failures++
	} else {
		s.LastSuccess = m.StartTime.Add(m.Duration)
	}
	if t.slowThreshold > 0 && m.Duration > t.slowThreshold {
		s.Slow++
	}

	snapshot := *m
	snapshot.tracker = nil
	t.recent = append(t.recent, snapshot)
	if len(t.recent) > t.maxRecent {
		t.recent = t.recent[len(t.recent)-t.maxRecent:]
	}
}

// Summary returns the per-operation aggregates sorted by name and the recent
// markers newest first.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := Summary{Since: t.started}
	for _, s := range t.stats {
		out.Operations = append(out.Operations, *s)
	}
	sort.Slice(out.Operations, func(i, j int) bool {
		return out.Operations[i].Operation < out.Operations[j].Operation
	})
	for i := len(t.recent) - 1; i >= 0; i-- {
		out.Recent = append(out.Recent, t.recent[i])
	}
	return out
}
