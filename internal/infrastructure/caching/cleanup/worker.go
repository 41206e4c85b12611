// Package cleanup provides background worker
package cleanup

import (
	"context"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
)

// Worker handles background cache cleanup operations
type Worker struct {
	stores []interfaces.Purger
	config *Config
	logger *logging.ChanneledLogger
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(config *Config, logger *logging.ChanneledLogger, stores ...interfaces.Purger) *Worker {
	return &Worker{
		stores: stores,
		config: config,
		logger: logger,
	}
}

// Start begins the cleanup worker routine, using the configured interval.
// It returns when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if w.config.CleanupInterval <= 0 {
		w.logger.Cache().Warn("Cache cleanup worker disabled", "interval", w.config.CleanupInterval)
		return
	}
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.Cache().Info("Cache cleanup worker started", "interval", w.config.CleanupInterval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Cache cleanup worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce purges expired entries from every store and returns the count removed.
func (w *Worker) RunOnce(ctx context.Context) int {
	start := time.Now()
	var totalCleaned int
	for _, store := range w.stores {
		select {
		case <-ctx.Done():
			return totalCleaned
		default:
			totalCleaned += store.PurgeExpired()
		}
	}

	if totalCleaned > 0 {
		w.logger.Cache().Info("Cache cleanup finished", "cleaned", totalCleaned, "duration", time.Since(start))
	} else {
		w.logger.Cache().Debug("Cache cleanup completed - no expired items found", "duration", time.Since(start))
	}
	return totalCleaned
}
