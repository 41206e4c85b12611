// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"
	"strings"

	"github.com/AtRiskMedia/campaigns-go/internal/application/services"
	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/adapters"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/performance"
	campaignpersistence "github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
	readerpersistence "github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/reader"
	"github.com/AtRiskMedia/campaigns-go/pkg/config"
)

// Options selects the reader cache wiring.
type Options struct {
	IgnoreCache  bool
	CacheBackend string
	Redis        stores.RedisConfig
}

// OptionsFromConfig reads the cache wiring from the config package.
func OptionsFromConfig() Options {
	return Options{
		IgnoreCache:  config.IgnoreCache,
		CacheBackend: config.CacheBackend,
		Redis: stores.RedisConfig{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
			PoolSize: config.RedisPoolSize,
		},
	}
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Decision engine (stateless singletons)
	MatcherService     *services.SegmentMatcherService
	SelectorService    *services.SegmentSelectorService
	FrequencyService   *services.FrequencyService
	EligibilityService *services.PromptEligibilityService

	// Application services
	IdentityService *services.ReaderIdentityService
	SegmentService  *services.SegmentService
	ReaderService   *services.ReaderService
	CampaignService *services.CampaignService
	AuthService     *services.AuthService

	// Infrastructure Dependencies
	Logger       *logging.ChanneledLogger
	PerfTracker  *performance.Tracker
	DB           *database.DB
	ReaderRepo   reader.Repository
	ReaderCache  interfaces.ReaderCache
	SegmentCache *stores.SegmentsStore
	redisStore   *stores.RedisReadersStore
}

// NewContainer creates and wires all singleton services. With IgnoreCache the
// durable reader repository is used directly.
func NewContainer(db *database.DB, logger *logging.ChanneledLogger, opts Options) (*Container, error) {
	c := &Container{
		Logger:      logger,
		DB:          db,
		PerfTracker: performance.NewTracker(config.SlowRequestThreshold, 200),
	}

	durable := readerpersistence.NewSQLReaderRepository(db, logger, config.ViewDedupWindow)
	c.ReaderRepo = durable

	if opts.IgnoreCache {
		logger.Cache().Warn("Reader cache disabled, reading from the durable store")
	} else {
		switch strings.ToLower(opts.CacheBackend) {
		case "redis":
			store, err := stores.NewRedisReadersStore(opts.Redis, config.ReaderCacheTTL, logger)
			if err != nil {
				logger.Cache().Warn("Redis unavailable, falling back to the in-memory reader cache",
					"addr", opts.Redis.Addr, "error", err.Error())
				c.ReaderCache = stores.NewReadersStore(config.ReaderCacheTTL, logger)
				break
			}
			c.redisStore = store
			c.ReaderCache = store
		case "", "memory":
			c.ReaderCache = stores.NewReadersStore(config.ReaderCacheTTL, logger)
		default:
			return nil, fmt.Errorf("unknown cache backend %q", opts.CacheBackend)
		}
		c.ReaderRepo = adapters.NewCachedReaderRepository(durable, c.ReaderCache, logger)
	}

	segmentRepo := campaignpersistence.NewSQLSegmentRepository(db, logger)
	c.SegmentCache = stores.NewSegmentsStore(config.SegmentCacheTTL, logger)

	c.MatcherService = services.NewSegmentMatcherService(services.DefaultMatcherConfig())
	c.SelectorService = services.NewSegmentSelectorService(c.MatcherService)
	c.FrequencyService = services.NewFrequencyService()
	c.EligibilityService = services.NewPromptEligibilityService(c.MatcherService, c.FrequencyService)

	c.IdentityService = services.NewReaderIdentityService(c.ReaderRepo, config.MaxLinkedClientIDs, logger)
	c.SegmentService = services.NewSegmentService(segmentRepo, c.SegmentCache, logger)
	c.ReaderService = services.NewReaderService(c.ReaderRepo, c.IdentityService, c.SegmentService, c.SelectorService, logger)
	c.CampaignService = services.NewCampaignService(c.ReaderService, c.SegmentService, c.SelectorService, c.EligibilityService, logger)
	c.AuthService = services.NewAuthService(config.AdminPassword, config.JWTSecret, config.AdminTokenTTL, logger)

	return c, nil
}

// Purgers returns the in-process caches the cleanup worker should sweep.
func (c *Container) Purgers() []interfaces.Purger {
	purgers := []interfaces.Purger{c.SegmentCache}
	if c.ReaderCache != nil {
		purgers = append(purgers, c.ReaderCache)
	}
	return purgers
}

// Close releases the cache and database connections.
func (c *Container) Close() error {
	if c.redisStore != nil {
		if err := c.redisStore.Close(); err != nil {
			c.Logger.Shutdown().Error("Error closing redis cache", "error", err.Error())
		}
	}
	return c.DB.Close()
}
