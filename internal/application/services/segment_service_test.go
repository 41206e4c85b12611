package services

import (
	"errors"
	"testing"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	campaignpersistence "github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
)

func TestSegmentServiceLifecycle(t *testing.T) {
	e := newEngine(t)
	e.createSegment(t, "a", campaigns.SegmentConfiguration{})
	e.createSegment(t, "b", campaigns.SegmentConfiguration{})
	e.createSegment(t, "c", campaigns.SegmentConfiguration{})

	reordered, err := e.segments.Reorder([]string{"c", "a"})
	if err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}
	assertCatalog(t, reordered, "c", "a", "b")

	if err := e.segments.Delete("c"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, err := e.segments.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	assertCatalog(t, list, "a", "b")

	updated, err := e.segments.Update(&campaigns.Segment{ID: "b", Name: "Bees", Configuration: campaigns.SegmentConfiguration{MinPosts: 4}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Bees" || updated.Configuration.MinPosts != 4 || updated.Priority != 1 {
		t.Errorf("unexpected update result %+v", updated)
	}

	got, err := e.segments.Get("b")
	if err != nil || got == nil || got.Name != "Bees" {
		t.Errorf("Get() after update = %+v, %v", got, err)
	}
}

func assertCatalog(t *testing.T, segments []*campaigns.Segment, want ...string) {
	t.Helper()
	if len(segments) != len(want) {
		t.Fatalf("catalog size = %d, want %d", len(segments), len(want))
	}
	for i, seg := range segments {
		if seg.ID != want[i] || seg.Priority != i {
			t.Fatalf("catalog[%d] = %s (priority %d), want %s (priority %d)", i, seg.ID, seg.Priority, want[i], i)
		}
	}
}

func TestSegmentServiceValidation(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name string
		seg  *campaigns.Segment
	}{
		{"missing name", &campaigns.Segment{Name: "  "}},
		{"min above max", &campaigns.Segment{Name: "x", Configuration: campaigns.SegmentConfiguration{MinPosts: 5, MaxPosts: 2}}},
		{"negative count", &campaigns.Segment{Name: "x", Configuration: campaigns.SegmentConfiguration{MinSessionPosts: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.segments.Create(tt.seg); !errors.Is(err, ErrInvalidSegment) {
				t.Errorf("Create() error = %v, want ErrInvalidSegment", err)
			}
		})
	}

	e.createSegment(t, "dup", campaigns.SegmentConfiguration{})
	if _, err := e.segments.Create(&campaigns.Segment{ID: "dup", Name: "dup"}); !errors.Is(err, ErrInvalidSegment) {
		t.Errorf("duplicate Create() error = %v, want ErrInvalidSegment", err)
	}
}

func TestSegmentServiceNotFound(t *testing.T) {
	e := newEngine(t)
	if _, err := e.segments.Update(&campaigns.Segment{ID: "missing", Name: "x"}); !errors.Is(err, campaigns.ErrSegmentNotFound) {
		t.Errorf("Update() error = %v, want ErrSegmentNotFound", err)
	}
	if err := e.segments.Delete("missing"); !errors.Is(err, campaigns.ErrSegmentNotFound) {
		t.Errorf("Delete() error = %v, want ErrSegmentNotFound", err)
	}
	seg, err := e.segments.Get("missing")
	if err != nil || seg != nil {
		t.Errorf("Get() = %v, %v; want nil, nil", seg, err)
	}
}

// interleavingSegmentRepository runs duringFindAll once, after FindAll has read
// the catalog and before it returns.
type interleavingSegmentRepository struct {
	campaigns.SegmentRepository
	duringFindAll func()
}

func (r *interleavingSegmentRepository) FindAll() ([]*campaigns.Segment, error) {
	segments, err := r.SegmentRepository.FindAll()
	if hook := r.duringFindAll; hook != nil {
		r.duringFindAll = nil
		hook()
	}
	return segments, err
}

func TestSegmentServiceWriteDuringCatalogLoad(t *testing.T) {
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logging.NewDiscardLogger()
	repo := &interleavingSegmentRepository{SegmentRepository: campaignpersistence.NewSQLSegmentRepository(db, logger)}
	service := NewSegmentService(repo, stores.NewSegmentsStore(time.Minute, logger), logger)

	for _, id := range []string{"a", "b"} {
		if _, err := service.Create(&campaigns.Segment{ID: id, Name: id}); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	repo.duringFindAll = func() {
		if err := service.Delete("a"); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	}
	raced, err := service.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	assertCatalog(t, raced, "a", "b")

	for i := 0; i < 2; i++ {
		list, err := service.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		assertCatalog(t, list, "b")
	}
}
