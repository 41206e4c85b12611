package stores

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/types"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

// SegmentsStore holds the segment catalog snapshot.
type SegmentsStore struct {
	snapshot   *types.SegmentSnapshot
	generation uint64
	ttl        time.Duration
	mu         sync.RWMutex
	logger     *logging.ChanneledLogger
	now        func() time.Time
}

// NewSegmentsStore creates a new segment snapshot store
func NewSegmentsStore(ttl time.Duration, logger *logging.ChanneledLogger) *SegmentsStore {
	return &SegmentsStore{
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generation returns the number of invalidations so far.
func (ss *SegmentsStore) Generation() uint64 {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.generation
}

// GetSegments returns the snapshot when it is loaded and fresh. The slice is a
// copy; the segments themselves are shared and must not be modified.
func (ss *SegmentsStore) GetSegments() ([]*campaigns.Segment, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	if ss.snapshot == nil || types.Expired(ss.snapshot.LastLoaded, ss.ttl, ss.now()) {
		return nil, false
	}
	out := make([]*campaigns.Segment, len(ss.snapshot.Segments))
	copy(out, ss.snapshot.Segments)
	return out, true
}

// SetSegments replaces the snapshot unless the catalog was invalidated after
// generation was read.
func (ss *SegmentsStore) SetSegments(segments []*campaigns.Segment, generation uint64) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.generation != generation {
		if ss.logger != nil {
			ss.logger.Cache().Debug("Skipped segment snapshot loaded before invalidation", "generation", generation, "current", ss.generation)
		}
		return false
	}
	ss.snapshot = &types.SegmentSnapshot{Segments: segments, LastLoaded: ss.now()}
	if ss.logger != nil {
		ss.logger.Cache().Debug("Segment snapshot stored", "count", len(segments))
	}
	return true
}

// InvalidateSegments drops the snapshot and advances the generation.
func (ss *SegmentsStore) InvalidateSegments() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.snapshot = nil
	ss.generation++
}

// PurgeExpired drops a stale snapshot.
func (ss *SegmentsStore) PurgeExpired() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.snapshot != nil && types.Expired(ss.snapshot.LastLoaded, ss.ttl, ss.now()) {
		ss.snapshot = nil
		return 1
	}
	return 0
}
