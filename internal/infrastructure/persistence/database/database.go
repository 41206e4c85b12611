// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	UseTurso bool
}

// Options selects the backing database.
type Options struct {
	SQLitePath       string
	TursoDatabaseURL string
	TursoAuthToken   string
}

// OptionsFromConfig reads connection options from the config package.
func OptionsFromConfig() Options {
	return Options{
		SQLitePath:       config.SQLitePath,
		TursoDatabaseURL: config.TursoDatabaseURL,
		TursoAuthToken:   config.TursoAuthToken,
	}
}

// NewConnection establishes a new database connection for the specified driver.
func NewConnection(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, UseTurso: driverName == "libsql"}, nil
}

// Open connects to Turso when a database URL is configured and to the local
// SQLite file otherwise, then applies the pool limits.
func Open(opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()

	var (
		db  *DB
		err error
	)
	if opts.TursoDatabaseURL != "" {
		logger.Database().Debug("Opening Turso connection", "databaseURL", opts.TursoDatabaseURL)
		db, err = NewConnection("libsql", opts.TursoDatabaseURL+"?authToken="+opts.TursoAuthToken)
		if err != nil {
			logger.Database().Error("Turso connection failed", "error", err.Error(), "databaseURL", opts.TursoDatabaseURL)
			return nil, fmt.Errorf("turso connection failed: %w", err)
		}
	} else {
		if dir := filepath.Dir(opts.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		logger.Database().Debug("Opening SQLite connection", "path", opts.SQLitePath)
		db, err = NewConnection("sqlite3", opts.SQLitePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
		if err != nil {
			logger.Database().Error("SQLite connection failed", "error", err.Error(), "path", opts.SQLitePath)
			return nil, fmt.Errorf("sqlite connection failed: %w", err)
		}
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(config.DBConnMaxIdleMinutes) * time.Minute)

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "turso", db.UseTurso, "duration", duration)
	CheckAndLogSlowQuery(logger, "DATABASE_CONNECTION", duration)

	return db, nil
}

// OpenInMemory returns a private in-memory SQLite database with the schema applied.
func OpenInMemory() (*DB, error) {
	db, err := NewConnection("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// every pooled connection would otherwise see its own empty database
	db.SetMaxOpenConns(1)
	if err := NewTableCreator().CreateSchema(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
