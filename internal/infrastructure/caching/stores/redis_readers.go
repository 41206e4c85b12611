package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "campaigns:"
	redisOpTimeout   = 2 * time.Second
	redisPingTimeout = 3 * time.Second

	minGenerationTTL = 24 * time.Hour
)

var errStaleGeneration = errors.New("cache generation moved on")

// RedisConfig selects the Redis server backing the shared reader cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisReadersStore caches reader profiles and event logs in Redis so several
// processes share them. Expiry is delegated to Redis.
type RedisReadersStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.ChanneledLogger
}

// NewRedisReadersStore connects to Redis and verifies the connection.
func NewRedisReadersStore(cfg RedisConfig, ttl time.Duration, logger *logging.ChanneledLogger) (*RedisReadersStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if logger != nil {
		logger.Cache().Info("Initializing reader cache store", "backend", "redis", "addr", cfg.Addr, "ttl", ttl)
	}
	return &RedisReadersStore{client: client, ttl: ttl, logger: logger}, nil
}

func readerKey(clientID string) string { return redisKeyPrefix + "reader:" + clientID }
func eventsKey(clientID string) string { return redisKeyPrefix + "events:" + clientID }
func genKey(clientID string) string { return redisKeyPrefix + "gen:" + clientID }

// generationTTL keeps generation keys well past any entry they guard.
func (rs *RedisReadersStore) generationTTL() time.Duration {
	return max(minGenerationTTL, 2*rs.ttl)
}

func (rs *RedisReadersStore) get(key string, out any) bool {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := rs.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && rs.logger != nil {
			rs.logger.Cache().Warn("Redis get failed", "key", key, "error", err.Error())
		}
		if rs.logger != nil {
			rs.logger.LogCacheOperation("get", key, false, time.Since(start))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		if rs.logger != nil {
			rs.logger.Cache().Warn("Discarding undecodable cache entry", "key", key, "error", err.Error())
		}
		return false
	}
	if rs.logger != nil {
		rs.logger.LogCacheOperation("get", key, true, time.Since(start))
	}
	return true
}

// setIfCurrent stores value under key inside a WATCH on the client's
// generation key, so an invalidation racing the store aborts it.
func (rs *RedisReadersStore) setIfCurrent(clientID, key string, value any, generation uint64) bool {
	data, err := json.Marshal(value)
	if err != nil {
		if rs.logger != nil {
			rs.logger.Cache().Warn("Failed to encode cache entry", "key", key, "error", err.Error())
		}
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	gk := genKey(clientID)
	err = rs.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, gk).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, rs.ttl)
			return nil
		})
		return err
	}, gk)

	switch {
	case err == nil:
		return true
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		if rs.logger != nil {
			rs.logger.Cache().Debug("Skipped cache store for invalidated client", "key", key)
		}
	default:
		if rs.logger != nil {
			rs.logger.Cache().Warn("Redis set failed", "key", key, "error", err.Error())
		}
	}
	return false
}

// Generation returns the client's invalidation counter. It reports false
// when Redis cannot be read; callers must not cache in that case.
func (rs *RedisReadersStore) Generation(clientID string) (uint64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	gen, err := rs.client.Get(ctx, genKey(clientID)).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		if rs.logger != nil {
			rs.logger.Cache().Warn("Redis generation read failed", "clientId", clientID, "error", err.Error())
		}
		return 0, false
	}
	return gen, true
}

// GetReader returns the cached profile.
func (rs *RedisReadersStore) GetReader(clientID string) (*reader.Reader, bool) {
	var r reader.Reader
	if !rs.get(readerKey(clientID), &r) {
		return nil, false
	}
	if r.ReaderData.Views == nil {
		r.ReaderData.Views = make(map[string]int)
	}
	if r.ReaderData.Category == nil {
		r.ReaderData.Category = make(map[string]int)
	}
	return &r, true
}

// SetReader stores the profile while the client is still at generation.
func (rs *RedisReadersStore) SetReader(r *reader.Reader, generation uint64) bool {
	if r == nil {
		return false
	}
	return rs.setIfCurrent(r.ClientID, readerKey(r.ClientID), r, generation)
}

// GetEvents returns the cached event log.
func (rs *RedisReadersStore) GetEvents(clientID string) ([]*reader.Event, bool) {
	var events []*reader.Event
	if !rs.get(eventsKey(clientID), &events) {
		return nil, false
	}
	if events == nil {
		events = []*reader.Event{}
	}
	return events, true
}

// SetEvents stores the complete event log while the client is still at generation.
func (rs *RedisReadersStore) SetEvents(clientID string, events []*reader.Event, generation uint64) bool {
	return rs.setIfCurrent(clientID, eventsKey(clientID), events, generation)
}

// InvalidateClient advances the client's generation and drops its entries in
// one transaction.
func (rs *RedisReadersStore) InvalidateClient(clientID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	gk := genKey(clientID)
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gk)
		pipe.Expire(ctx, gk, rs.generationTTL())
		pipe.Del(ctx, readerKey(clientID), eventsKey(clientID))
		return nil
	})
	if err != nil {
		if rs.logger != nil {
			rs.logger.Cache().Warn("Redis invalidation failed", "clientId", clientID, "error", err.Error())
		}
		return fmt.Errorf("invalidate client %s: %w", clientID, err)
	}
	return nil
}

// PurgeExpired is a no-op; Redis expires keys itself.
func (rs *RedisReadersStore) PurgeExpired() int { return 0 }

// Close releases the Redis connection pool.
func (rs *RedisReadersStore) Close() error {
	return rs.client.Close()
}
