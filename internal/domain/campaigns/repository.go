package campaigns

import "errors"

// ErrSegmentNotFound is returned by writes that target an unknown segment.
var ErrSegmentNotFound = errors.New("segment not found")

// SegmentRepository persists the segment catalog. Every write keeps
// priorities dense and equal to the catalog position.
type SegmentRepository interface {
	FindAll() ([]*Segment, error)
	FindByID(id string) (*Segment, error)
	Create(segment *Segment) error
	Update(segment *Segment) error
	Delete(id string) error
	Reorder(ids []string) error
}
