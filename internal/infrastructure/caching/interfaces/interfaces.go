// Package interfaces defines cache operation contracts for reader and segment data.
package interfaces

import (
	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
)

// ReaderCache caches reader profiles and complete event logs per client id.
// Implementations must be safe for concurrent use.
//
// Every InvalidateClient advances the client's generation. A loader reads the
// generation before going to storage and hands it back to SetReader or
// SetEvents, which store nothing once the generation has moved on.
type ReaderCache interface {
	Generation(clientID string) (uint64, bool)
	GetReader(clientID string) (*reader.Reader, bool)
	SetReader(r *reader.Reader, generation uint64) bool
	GetEvents(clientID string) ([]*reader.Event, bool)
	SetEvents(clientID string, events []*reader.Event, generation uint64) bool
	InvalidateClient(clientID string) error
	PurgeExpired() int
}

// SegmentCache holds the current segment catalog snapshot. Generations work as
// in ReaderCache with a single catalog-wide counter.
type SegmentCache interface {
	Generation() uint64
	GetSegments() ([]*campaigns.Segment, bool)
	SetSegments(segments []*campaigns.Segment, generation uint64) bool
	InvalidateSegments()
	PurgeExpired() int
}

// Purger is implemented by stores that hold expiring entries in process memory.
type Purger interface {
	PurgeExpired() int
}
