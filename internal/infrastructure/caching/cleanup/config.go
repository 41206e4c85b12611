package cleanup

import (
	"time"

	"github.com/AtRiskMedia/campaigns-go/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config package.
type Config struct {
	CleanupInterval time.Duration
	ReaderCacheTTL  time.Duration
	SegmentCacheTTL time.Duration
}

// NewConfig creates a new cleanup configuration by reading values
// from the already-initialized variables in the centralized /pkg/config package.
func NewConfig() *Config {
	return &Config{
		CleanupInterval: config.CacheCleanupEvery,
		ReaderCacheTTL:  config.ReaderCacheTTL,
		SegmentCacheTTL: config.SegmentCacheTTL,
	}
}
