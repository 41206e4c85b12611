package database

import (
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS readers (
		client_id TEXT PRIMARY KEY,
		date_created TEXT NOT NULL,
		date_modified TEXT NOT NULL,
		reader_data TEXT NOT NULL DEFAULT '{}',
		is_preview INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS reader_events (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		date_created TEXT NOT NULL,
		type TEXT NOT NULL,
		context TEXT,
		value TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		priority INTEGER NOT NULL,
		configuration TEXT NOT NULL DEFAULT '{}',
		created TEXT NOT NULL,
		changed TEXT NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_reader_events_client_type ON reader_events(client_id, type, date_created)`,
	`CREATE INDEX IF NOT EXISTS idx_reader_events_type_context ON reader_events(type, context)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_priority ON segments(priority)`,
}
