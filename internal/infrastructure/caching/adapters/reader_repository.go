// Package adapters puts the cache stores in front of the durable repositories.
package adapters

import (
	"slices"
	"sync"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

// CachedReaderRepository is a read-through reader.Repository. It caches the
// complete event log of a client and filters it per call; every write goes to
// the durable repository first and then invalidates the client's entries.
//
// Loads read the client's cache generation before going to storage and store
// their result only if no invalidation happened in between. Clients whose
// invalidation failed are served from storage until a retry succeeds.
type CachedReaderRepository struct {
	durable reader.Repository
	cache   interfaces.ReaderCache
	logger  *logging.ChanneledLogger

	mu     sync.Mutex
	bypass map[string]struct{}
}

// NewCachedReaderRepository wraps durable with cache.
func NewCachedReaderRepository(durable reader.Repository, cache interfaces.ReaderCache, logger *logging.ChanneledLogger) *CachedReaderRepository {
	return &CachedReaderRepository{
		durable: durable,
		cache:   cache,
		logger:  logger,
		bypass:  make(map[string]struct{}),
	}
}

// GetReader serves the profile from cache, loading it on a miss.
func (c *CachedReaderRepository) GetReader(clientID string) (*reader.Reader, error) {
	if !c.cacheUsable(clientID) {
		return c.durable.GetReader(clientID)
	}
	if r, ok := c.cache.GetReader(clientID); ok {
		return r, nil
	}
	gen, cacheable := c.cache.Generation(clientID)
	r, err := c.durable.GetReader(clientID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.cache.SetReader(r, gen)
	}
	return r, nil
}

// GetReaderEvents filters the cached log, loading every event type on a miss.
func (c *CachedReaderRepository) GetReaderEvents(clientID string, types []reader.EventType, contexts []string) ([]*reader.Event, error) {
	all, err := c.eventLog(clientID)
	if err != nil {
		return nil, err
	}

	if types == nil {
		types = reader.TemporaryEventTypes
	}
	out := make([]*reader.Event, 0, len(all))
	for _, ev := range all {
		if !slices.Contains(types, ev.Type) {
			continue
		}
		if len(contexts) > 0 && !slices.Contains(contexts, string(ev.Context)) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *CachedReaderRepository) eventLog(clientID string) ([]*reader.Event, error) {
	if !c.cacheUsable(clientID) {
		return c.durable.GetReaderEvents(clientID, reader.AllEventTypes, nil)
	}
	if all, ok := c.cache.GetEvents(clientID); ok {
		return all, nil
	}
	gen, cacheable := c.cache.Generation(clientID)
	all, err := c.durable.GetReaderEvents(clientID, reader.AllEventTypes, nil)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.cache.SetEvents(clientID, all, gen)
	}
	return all, nil
}

// SaveReaderEvents writes through and invalidates the client.
func (c *CachedReaderRepository) SaveReaderEvents(clientID string, events []*reader.Event) (int, error) {
	accepted, err := c.durable.SaveReaderEvents(clientID, events)
	c.invalidate(clientID)
	if err != nil {
		return 0, err
	}
	if c.logger != nil {
		c.logger.Cache().Debug("Reader cache invalidated after write", "accepted", accepted)
	}
	return accepted, nil
}

// SaveReader writes through and invalidates the client.
func (c *CachedReaderRepository) SaveReader(r *reader.Reader) error {
	err := c.durable.SaveReader(r)
	c.invalidate(r.ClientID)
	return err
}

// FindClientIDsByEvent is not cached; linked ids change whenever any client
// records a matching event.
func (c *CachedReaderRepository) FindClientIDsByEvent(eventType reader.EventType, contexts []string, limit int) ([]string, error) {
	return c.durable.FindClientIDsByEvent(eventType, contexts, limit)
}

// invalidate drops the client's cache entries, retrying once. A client that
// still cannot be invalidated is put on the bypass list.
func (c *CachedReaderRepository) invalidate(clientID string) {
	err := c.cache.InvalidateClient(clientID)
	if err != nil {
		err = c.cache.InvalidateClient(clientID)
	}
	if err == nil {
		return
	}
	c.mu.Lock()
	c.bypass[clientID] = struct{}{}
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.WithClient(logging.ChannelCache, clientID).Error("Reader cache invalidation failed, serving from storage", "error", err.Error())
	}
}

// cacheUsable reports whether the client's cache entries can be trusted. For a
// bypassed client it retries the invalidation and clears the bypass on success.
func (c *CachedReaderRepository) cacheUsable(clientID string) bool {
	c.mu.Lock()
	_, pending := c.bypass[clientID]
	c.mu.Unlock()
	if !pending {
		return true
	}
	if err := c.cache.InvalidateClient(clientID); err != nil {
		return false
	}
	c.mu.Lock()
	delete(c.bypass, clientID)
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Cache().Info("Reader cache invalidation recovered", "clientId", clientID)
	}
	return true
}
