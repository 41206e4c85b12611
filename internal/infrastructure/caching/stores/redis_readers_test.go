package stores

import (
	"os"
	"testing"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

func newRedisStore(t *testing.T) *RedisReadersStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	store, err := NewRedisReadersStore(RedisConfig{Addr: addr, PoolSize: 2}, time.Minute, logging.NewDiscardLogger())
	if err != nil {
		t.Fatalf("NewRedisReadersStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisReadersStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	clientID := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = store.InvalidateClient(clientID) })

	gen, ok := store.Generation(clientID)
	if !ok {
		t.Fatal("Generation() unavailable")
	}
	r := reader.NewReader(clientID, time.Now().UTC())
	r.ReaderData.Category["5"] = 2
	if !store.SetReader(r, gen) {
		t.Fatal("SetReader() rejected the current generation")
	}

	events := []*reader.Event{{
		ID:          "01",
		ClientID:    clientID,
		Type:        reader.EventView,
		Context:     "post",
		DateCreated: time.Now().UTC(),
		Value:       map[string]any{"post_id": "12"},
	}}
	store.SetEvents(clientID, events, gen)

	got, ok := store.GetReader(clientID)
	if !ok || got.ReaderData.Category["5"] != 2 {
		t.Errorf("GetReader() = %+v, %v", got, ok)
	}
	loaded, ok := store.GetEvents(clientID)
	if !ok || len(loaded) != 1 || loaded[0].PostID() != "12" {
		t.Errorf("GetEvents() = %+v, %v", loaded, ok)
	}

	if err := store.InvalidateClient(clientID); err != nil {
		t.Fatalf("InvalidateClient() error = %v", err)
	}
	if _, ok := store.GetReader(clientID); ok {
		t.Error("reader survived invalidation")
	}
}

func TestRedisReadersStoreRejectsSetAfterInvalidation(t *testing.T) {
	store := newRedisStore(t)
	clientID := "test-gen-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = store.InvalidateClient(clientID) })

	before, ok := store.Generation(clientID)
	if !ok {
		t.Fatal("Generation() unavailable")
	}
	if err := store.InvalidateClient(clientID); err != nil {
		t.Fatalf("InvalidateClient() error = %v", err)
	}
	if store.SetEvents(clientID, []*reader.Event{}, before) {
		t.Error("SetEvents() stored a log loaded before the invalidation")
	}
	if _, ok := store.GetEvents(clientID); ok {
		t.Error("stale log is cached")
	}

	after, _ := store.Generation(clientID)
	if after == before {
		t.Fatalf("generation did not advance: %d", after)
	}
	if !store.SetEvents(clientID, []*reader.Event{}, after) {
		t.Error("SetEvents() rejected the current generation")
	}
}
