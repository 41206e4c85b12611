// Package stores provides concrete cache store implementations
package stores

import (
	"maps"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/types"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

// ReadersStore implements in-process reader caching with a per-entry TTL.
type ReadersStore struct {
	cache  *types.ReaderStateCache
	ttl    time.Duration
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewReadersStore creates a new reader cache store
func NewReadersStore(ttl time.Duration, logger *logging.ChanneledLogger) *ReadersStore {
	if logger != nil {
		logger.Cache().Info("Initializing reader cache store", "backend", "memory", "ttl", ttl)
	}
	return &ReadersStore{
		cache: &types.ReaderStateCache{
			Readers:     make(map[string]*types.CachedReader),
			Events:      make(map[string]*types.CachedEvents),
			Generations: make(map[string]uint64),
			LastLoaded:  time.Now().UTC(),
		},
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generation returns the client's current invalidation generation.
func (rs *ReadersStore) Generation(clientID string) (uint64, bool) {
	rs.cache.Mu.RLock()
	defer rs.cache.Mu.RUnlock()
	return rs.generationLocked(clientID), true
}

func (rs *ReadersStore) generationLocked(clientID string) uint64 {
	if gen, ok := rs.cache.Generations[clientID]; ok {
		return gen
	}
	return rs.cache.GenerationFloor
}

// GetReader returns a copy of the cached profile.
func (rs *ReadersStore) GetReader(clientID string) (*reader.Reader, bool) {
	start := time.Now()
	rs.cache.Mu.RLock()
	entry, ok := rs.cache.Readers[clientID]
	rs.cache.Mu.RUnlock()

	hit := ok && !types.Expired(entry.StoredAt, rs.ttl, rs.now())
	if rs.logger != nil {
		rs.logger.LogCacheOperation("get_reader", clientID, hit, time.Since(start))
	}
	if !hit {
		return nil, false
	}
	return cloneReader(entry.Reader), true
}

// SetReader stores a copy of the profile unless the client was invalidated
// after generation was read.
func (rs *ReadersStore) SetReader(r *reader.Reader, generation uint64) bool {
	if r == nil {
		return false
	}
	rs.cache.Mu.Lock()
	defer rs.cache.Mu.Unlock()
	if rs.generationLocked(r.ClientID) != generation {
		rs.logStaleSet("set_reader", r.ClientID)
		return false
	}
	rs.cache.Readers[r.ClientID] = &types.CachedReader{Reader: cloneReader(r), StoredAt: rs.now()}
	return true
}

// GetEvents returns the cached event log. Callers must not modify the events.
func (rs *ReadersStore) GetEvents(clientID string) ([]*reader.Event, bool) {
	start := time.Now()
	rs.cache.Mu.RLock()
	entry, ok := rs.cache.Events[clientID]
	rs.cache.Mu.RUnlock()

	hit := ok && !types.Expired(entry.StoredAt, rs.ttl, rs.now())
	if rs.logger != nil {
		rs.logger.LogCacheOperation("get_events", clientID, hit, time.Since(start))
	}
	if !hit {
		return nil, false
	}
	return entry.Events, true
}

// SetEvents stores the complete event log of a client unless the client was
// invalidated after generation was read.
func (rs *ReadersStore) SetEvents(clientID string, events []*reader.Event, generation uint64) bool {
	rs.cache.Mu.Lock()
	defer rs.cache.Mu.Unlock()
	if rs.generationLocked(clientID) != generation {
		rs.logStaleSet("set_events", clientID)
		return false
	}
	rs.cache.Events[clientID] = &types.CachedEvents{Events: events, StoredAt: rs.now()}
	return true
}

// InvalidateClient drops every entry of a client and advances its generation.
func (rs *ReadersStore) InvalidateClient(clientID string) error {
	rs.cache.Mu.Lock()
	defer rs.cache.Mu.Unlock()
	delete(rs.cache.Readers, clientID)
	delete(rs.cache.Events, clientID)
	rs.cache.GenerationSeq++
	rs.cache.Generations[clientID] = rs.cache.GenerationSeq
	return nil
}

func (rs *ReadersStore) logStaleSet(op, clientID string) {
	if rs.logger != nil {
		rs.logger.Cache().Debug("Skipped cache store for invalidated client", "operation", op, "clientId", clientID)
	}
}

// PurgeExpired removes entries older than the TTL and returns how many were removed.
func (rs *ReadersStore) PurgeExpired() int {
	now := rs.now()
	rs.cache.Mu.Lock()
	defer rs.cache.Mu.Unlock()

	removed := 0
	for id, entry := range rs.cache.Readers {
		if types.Expired(entry.StoredAt, rs.ttl, now) {
			delete(rs.cache.Readers, id)
			removed++
		}
	}
	for id, entry := range rs.cache.Events {
		if types.Expired(entry.StoredAt, rs.ttl, now) {
			delete(rs.cache.Events, id)
			removed++
		}
	}
	// With the floor at the latest sequence, a client invalidated after its
	// generation was read still compares unequal once its entry is dropped.
	rs.cache.GenerationFloor = rs.cache.GenerationSeq
	clear(rs.cache.Generations)
	rs.cache.LastLoaded = now
	return removed
}

// Len returns the number of cached profiles and event logs.
func (rs *ReadersStore) Len() (readers, logs int) {
	rs.cache.Mu.RLock()
	defer rs.cache.Mu.RUnlock()
	return len(rs.cache.Readers), len(rs.cache.Events)
}

func cloneReader(r *reader.Reader) *reader.Reader {
	c := *r
	c.ReaderData.Views = maps.Clone(r.ReaderData.Views)
	c.ReaderData.Category = maps.Clone(r.ReaderData.Category)
	if c.ReaderData.Views == nil {
		c.ReaderData.Views = make(map[string]int)
	}
	if c.ReaderData.Category == nil {
		c.ReaderData.Category = make(map[string]int)
	}
	return &c
}
