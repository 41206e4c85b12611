package reader

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T) *SQLReaderRepository {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewSQLReaderRepository(db, logging.NewDiscardLogger(), 30*24*time.Hour)
	repo.now = func() time.Time { return baseTime }
	return repo
}

func view(postID string, at time.Time, categories string) *reader.Event {
	return &reader.Event{
		Type:        reader.EventView,
		Context:     "post",
		DateCreated: at,
		Value:       map[string]any{"post_id": postID, "categories": categories},
	}
}

func TestGetReaderReturnsBlankForUnknownClient(t *testing.T) {
	repo := newTestRepository(t)

	rd, err := repo.GetReader("nobody")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	if rd.ClientID != "nobody" || rd.TotalViews() != 0 {
		t.Errorf("unexpected blank reader %+v", rd)
	}

	ids, err := repo.FindClientIDsByEvent(reader.EventView, []string{"post"}, 10)
	if err != nil {
		t.Fatalf("FindClientIDsByEvent() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("GetReader must not persist a reader, found %v", ids)
	}
}

func TestSaveReaderEventsCountsViews(t *testing.T) {
	repo := newTestRepository(t)

	accepted, err := repo.SaveReaderEvents("c1", []*reader.Event{
		view("1", baseTime, "news,local"),
		view("2", baseTime.Add(time.Minute), "news"),
	})
	if err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}
	if accepted != 2 {
		t.Fatalf("accepted = %d, want 2", accepted)
	}

	rd, err := repo.GetReader("c1")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	if rd.ReaderData.Views["post"] != 2 {
		t.Errorf("views[post] = %d, want 2", rd.ReaderData.Views["post"])
	}
	if rd.ReaderData.Category["news"] != 2 || rd.ReaderData.Category["local"] != 1 {
		t.Errorf("unexpected category counters %v", rd.ReaderData.Category)
	}
}

func TestSaveReaderEventsDeduplicatesViews(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.SaveReaderEvents("c1", []*reader.Event{view("7", baseTime, "")}); err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}

	// same post again, plus an in-batch repeat of another post
	accepted, err := repo.SaveReaderEvents("c1", []*reader.Event{
		view("7", baseTime.Add(time.Hour), ""),
		view("8", baseTime.Add(time.Hour), ""),
		view("8", baseTime.Add(2*time.Hour), ""),
	})
	if err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted)
	}

	events, err := repo.GetReaderEvents("c1", []reader.EventType{reader.EventView}, nil)
	if err != nil {
		t.Fatalf("GetReaderEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Errorf("stored views = %d, want 2", len(events))
	}

	rd, _ := repo.GetReader("c1")
	if rd.TotalViews() != 2 {
		t.Errorf("TotalViews() = %d, want 2", rd.TotalViews())
	}
}

func TestSaveReaderEventsDeduplicatesRequests(t *testing.T) {
	repo := newTestRepository(t)

	page := func(at time.Time) *reader.Event {
		return &reader.Event{
			Type:        reader.EventView,
			Context:     "page",
			DateCreated: at,
			Value:       map[string]any{"request": map[string]any{"path": "/about", "q": "x"}},
		}
	}

	accepted, err := repo.SaveReaderEvents("c1", []*reader.Event{page(baseTime), page(baseTime.Add(time.Minute))})
	if err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted)
	}
}

func TestSaveReaderEventsAcceptsViewOutsideWindow(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.SaveReaderEvents("c1", []*reader.Event{view("1", baseTime, "")}); err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}
	accepted, err := repo.SaveReaderEvents("c1", []*reader.Event{view("1", baseTime.Add(31*24*time.Hour), "")})
	if err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted)
	}
}

func TestGetReaderEventsFiltersAndOrders(t *testing.T) {
	repo := newTestRepository(t)

	events := []*reader.Event{
		view("1", baseTime, ""),
		{Type: reader.EventSubscription, Context: "newsletter", DateCreated: baseTime.Add(time.Minute)},
		view("2", baseTime.Add(2*time.Minute), ""),
		{Type: reader.EventPromptSeen, Context: "42", DateCreated: baseTime.Add(3 * time.Minute)},
	}
	if _, err := repo.SaveReaderEvents("c1", events); err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}

	temporary, err := repo.GetReaderEvents("c1", nil, nil)
	if err != nil {
		t.Fatalf("GetReaderEvents() error = %v", err)
	}
	if len(temporary) != 3 {
		t.Fatalf("temporary events = %d, want 3", len(temporary))
	}
	for i := 1; i < len(temporary); i++ {
		if temporary[i].DateCreated.After(temporary[i-1].DateCreated) {
			t.Errorf("events not newest-first at %d", i)
		}
	}

	subs, err := repo.GetReaderEvents("c1", []reader.EventType{reader.EventSubscription}, nil)
	if err != nil {
		t.Fatalf("GetReaderEvents() error = %v", err)
	}
	if len(subs) != 1 || subs[0].Context != "newsletter" {
		t.Errorf("unexpected subscription events %+v", subs)
	}

	seen, err := repo.GetReaderEvents("c1", []reader.EventType{reader.EventPromptSeen}, []string{"41"})
	if err != nil {
		t.Fatalf("GetReaderEvents() error = %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("context filter returned %d events", len(seen))
	}
}

func TestFindClientIDsByEvent(t *testing.T) {
	repo := newTestRepository(t)

	for i, id := range []string{"a", "b", "c"} {
		ev := &reader.Event{Type: reader.EventUserAccount, Context: "99", DateCreated: baseTime.Add(time.Duration(i) * time.Minute)}
		if _, err := repo.SaveReaderEvents(id, []*reader.Event{ev}); err != nil {
			t.Fatalf("SaveReaderEvents() error = %v", err)
		}
	}
	other := &reader.Event{Type: reader.EventUserAccount, Context: "100", DateCreated: baseTime}
	if _, err := repo.SaveReaderEvents("d", []*reader.Event{other}); err != nil {
		t.Fatalf("SaveReaderEvents() error = %v", err)
	}

	ids, err := repo.FindClientIDsByEvent(reader.EventUserAccount, []string{"99"}, 2)
	if err != nil {
		t.Fatalf("FindClientIDsByEvent() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("FindClientIDsByEvent() = %v, want [a b]", ids)
	}
}

func TestSaveReaderUpserts(t *testing.T) {
	repo := newTestRepository(t)

	rd := reader.NewReader("c1", baseTime)
	rd.IsPreview = true
	if err := repo.SaveReader(rd); err != nil {
		t.Fatalf("SaveReader() error = %v", err)
	}
	rd.ReaderData.Views["page"] = 4
	if err := repo.SaveReader(rd); err != nil {
		t.Fatalf("SaveReader() error = %v", err)
	}

	loaded, err := repo.GetReader("c1")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	if !loaded.IsPreview || loaded.ReaderData.Views["page"] != 4 {
		t.Errorf("unexpected reader after upsert %+v", loaded)
	}
}
