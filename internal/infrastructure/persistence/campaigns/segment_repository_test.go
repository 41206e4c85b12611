package campaigns

import (
	"errors"
	"testing"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
)

func newTestRepository(t *testing.T) *SQLSegmentRepository {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLSegmentRepository(db, logging.NewDiscardLogger())
}

func seed(t *testing.T, repo *SQLSegmentRepository, names ...string) []*campaigns.Segment {
	t.Helper()
	var out []*campaigns.Segment
	for _, name := range names {
		seg := &campaigns.Segment{ID: name, Name: name}
		if err := repo.Create(seg); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
		out = append(out, seg)
	}
	return out
}

func ids(segments []*campaigns.Segment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.ID
	}
	return out
}

func assertOrder(t *testing.T, repo *SQLSegmentRepository, want ...string) {
	t.Helper()
	all, err := repo.FindAll()
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	got := ids(all)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] || all[i].Priority != i {
			t.Fatalf("order = %v (priority %d at %d), want %v", got, all[i].Priority, i, want)
		}
	}
}

func TestCreateAppendsWithDensePriority(t *testing.T) {
	repo := newTestRepository(t)
	segments := seed(t, repo, "a", "b", "c")

	for i, seg := range segments {
		if seg.Priority != i {
			t.Errorf("%s priority = %d, want %d", seg.ID, seg.Priority, i)
		}
	}
	assertOrder(t, repo, "a", "b", "c")
}

func TestCreateGeneratesID(t *testing.T) {
	repo := newTestRepository(t)
	seg := &campaigns.Segment{Name: "anonymous"}
	if err := repo.Create(seg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if seg.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestUpdateStoresConfiguration(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo, "a")

	seg := &campaigns.Segment{
		ID:   "a",
		Name: "Readers",
		Configuration: campaigns.SegmentConfiguration{
			MinPosts:           2,
			IsSubscribed:       true,
			FavoriteCategories: []string{"5", "7"},
			Referrers:          "facebook.com",
		},
	}
	if err := repo.Update(seg); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	loaded, err := repo.FindByID("a")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	cfg := loaded.Configuration
	if loaded.Name != "Readers" || cfg.MinPosts != 2 || !cfg.IsSubscribed || len(cfg.FavoriteCategories) != 2 || cfg.Referrers != "facebook.com" {
		t.Errorf("unexpected segment after update %+v", loaded)
	}
}

func TestUpdateUnknownSegment(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.Update(&campaigns.Segment{ID: "missing"})
	if !errors.Is(err, campaigns.ErrSegmentNotFound) {
		t.Errorf("Update() error = %v, want ErrSegmentNotFound", err)
	}
}

func TestFindByIDMissing(t *testing.T) {
	repo := newTestRepository(t)
	seg, err := repo.FindByID("missing")
	if err != nil || seg != nil {
		t.Errorf("FindByID() = %v, %v; want nil, nil", seg, err)
	}
}

func TestDeleteReindexes(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo, "a", "b", "c")

	if err := repo.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	assertOrder(t, repo, "b", "c")

	if err := repo.Delete("a"); !errors.Is(err, campaigns.ErrSegmentNotFound) {
		t.Errorf("second Delete() error = %v, want ErrSegmentNotFound", err)
	}
}

func TestReorder(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo, "a", "b", "c", "d")

	if err := repo.Reorder([]string{"c", "unknown", "a", "c"}); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}
	assertOrder(t, repo, "c", "a", "b", "d")
}
