// Package types defines the cache entry structures for reader and segment data.
package types

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
)

// CachedReader is a reader profile with its load time.
type CachedReader struct {
	Reader   *reader.Reader `json:"reader"`
	StoredAt time.Time      `json:"storedAt"`
}

// CachedEvents is the full event log of a client, newest-first.
type CachedEvents struct {
	Events   []*reader.Event `json:"events"`
	StoredAt time.Time       `json:"storedAt"`
}

// ReaderStateCache holds per-client reader entries.
type ReaderStateCache struct {
	Readers map[string]*CachedReader // clientId -> profile
	Events  map[string]*CachedEvents // clientId -> event log

	// Generations holds the sequence value of each client's last
	// invalidation. Clients without an entry are at GenerationFloor.
	Generations     map[string]uint64
	GenerationSeq   uint64
	GenerationFloor uint64

	LastLoaded time.Time
	Mu         sync.RWMutex
}

// SegmentSnapshot is the segment catalog as last read from storage.
type SegmentSnapshot struct {
	Segments   []*campaigns.Segment
	LastLoaded time.Time
}

// Expired reports whether an entry stored at storedAt is older than ttl.
func Expired(storedAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(storedAt) > ttl
}
