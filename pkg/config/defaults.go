// Package config provides centralized default values for the campaigns service
package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		// godotenv.Load never overrides variables already present in the environment
		if err := godotenv.Load(); err != nil {
			return
		}
		log.Println("Loaded configuration overrides from .env file")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvSecret(key string) string {
	if val := os.Getenv(key); val != "" {
		log.Printf("Config override: %s=********", key)
		return val
	}
	return ""
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	AllowedOrigins     string

	// Database
	SQLitePath               string
	TursoDatabaseURL         string
	TursoAuthToken           string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration
	SlowRequestThreshold     time.Duration

	// Cache
	IgnoreCache       bool
	CacheBackend      string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	ReaderCacheTTL    time.Duration
	SegmentCacheTTL   time.Duration
	CacheCleanupEvery time.Duration

	// Engine
	SessionTimeout     time.Duration
	PostViewsWindow    time.Duration
	ViewDedupWindow    time.Duration
	MaxLinkedClientIDs int
	PostViewContext    string

	// Auth
	AdminPassword string
	JWTSecret     string
	AdminTokenTTL time.Duration

	// Logging
	LogDirectory  string
	LogToFile     bool
	LogJSONFormat bool
	LogLevel      string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	AllowedOrigins = getEnvString("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:4321,http://127.0.0.1:3000")

	// Database
	SQLitePath = getEnvString("SQLITE_PATH", "db/campaigns.db")
	TursoDatabaseURL = getEnvString("TURSO_DATABASE_URL", "")
	TursoAuthToken = getEnvSecret("TURSO_AUTH_TOKEN")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)
	SlowRequestThreshold = getEnvDuration("SLOW_REQUEST_THRESHOLD", time.Second)

	// Cache
	IgnoreCache = getEnvBool("IGNORE_CACHE", false)
	CacheBackend = getEnvString("CACHE_BACKEND", "memory")
	RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	RedisPassword = getEnvSecret("REDIS_PASSWORD")
	RedisDB = getEnvInt("REDIS_DB", 0)
	RedisPoolSize = getEnvInt("REDIS_POOL_SIZE", 10)
	ReaderCacheTTL = time.Duration(getEnvInt("READER_CACHE_TTL_MINUTES", 30)) * time.Minute
	SegmentCacheTTL = time.Duration(getEnvInt("SEGMENT_CACHE_TTL_MINUTES", 10)) * time.Minute
	CacheCleanupEvery = time.Duration(getEnvInt("CACHE_CLEANUP_INTERVAL_MINUTES", 5)) * time.Minute

	// Engine
	SessionTimeout = time.Duration(getEnvInt("SESSION_TIMEOUT_MINUTES", 45)) * time.Minute
	PostViewsWindow = time.Duration(getEnvInt("POST_VIEWS_WINDOW_DAYS", 30)) * 24 * time.Hour
	ViewDedupWindow = time.Duration(getEnvInt("VIEW_DEDUP_WINDOW_DAYS", 30)) * 24 * time.Hour
	MaxLinkedClientIDs = getEnvInt("MAX_LINKED_CLIENT_IDS", 10)
	PostViewContext = getEnvString("POST_VIEW_CONTEXT", "post")

	// Auth
	AdminPassword = getEnvSecret("ADMIN_PASSWORD")
	JWTSecret = getEnvSecret("JWT_SECRET")
	AdminTokenTTL = getEnvDuration("ADMIN_TOKEN_TTL", 24*time.Hour)

	// Logging
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", true)
	LogJSONFormat = getEnvBool("LOG_JSON_FORMAT", true)
	LogLevel = getEnvString("LOG_LEVEL", "INFO")
}
