// Package campaigns provides the SQL-based implementation of the segment catalog.
package campaigns

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/campaigns"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/security"
)

// SQLSegmentRepository is the SQL implementation of campaigns.SegmentRepository.
type SQLSegmentRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLSegmentRepository creates a new instance of the repository.
func NewSQLSegmentRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSegmentRepository {
	return &SQLSegmentRepository{db: db, logger: logger}
}

type rowQuerier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

const selectSegments = `
	SELECT id, name, priority, configuration, created, changed
	FROM segments`

// FindAll returns the catalog ordered by priority.
func (r *SQLSegmentRepository) FindAll() ([]*campaigns.Segment, error) {
	start := time.Now()
	r.logger.Database().Debug("Loading segment catalog")

	segments, err := r.findAll(r.db)
	if err != nil {
		r.logger.Database().Error("Failed to load segments", "error", err.Error())
		return nil, err
	}

	r.logger.Database().Info("Segment catalog loaded", "count", len(segments), "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, selectSegments, time.Since(start))
	return segments, nil
}

func (r *SQLSegmentRepository) findAll(q rowQuerier) ([]*campaigns.Segment, error) {
	rows, err := q.Query(selectSegments + " ORDER BY priority ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segments := []*campaigns.Segment{}
	for rows.Next() {
		seg, err := r.scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segments: %w", err)
	}
	return segments, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLSegmentRepository) scanSegment(s scanner) (*campaigns.Segment, error) {
	var (
		seg              campaigns.Segment
		configuration    string
		created, changed string
	)
	if err := s.Scan(&seg.ID, &seg.Name, &seg.Priority, &configuration, &created, &changed); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(configuration), &raw); err != nil {
		r.logger.Database().Warn("Segment has malformed configuration", "segmentId", seg.ID, "error", err.Error())
	}
	seg.Configuration = campaigns.DecodeSegmentConfiguration(raw)

	var err error
	if seg.Created, err = database.ParseTime(created); err != nil {
		return nil, err
	}
	if seg.Changed, err = database.ParseTime(changed); err != nil {
		return nil, err
	}
	return &seg, nil
}

// FindByID retrieves a single segment, or nil when it does not exist.
func (r *SQLSegmentRepository) FindByID(id string) (*campaigns.Segment, error) {
	seg, err := r.scanSegment(r.db.QueryRow(selectSegments+" WHERE id = ?", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load segment", "error", err.Error(), "segmentId", id)
		return nil, fmt.Errorf("failed to load segment: %w", err)
	}
	return seg, nil
}

// Create appends a segment at the end of the catalog.
func (r *SQLSegmentRepository) Create(seg *campaigns.Segment) error {
	if seg.ID == "" {
		seg.ID = security.GenerateULID()
	}
	configuration, err := json.Marshal(seg.Configuration)
	if err != nil {
		return fmt.Errorf("failed to encode segment configuration: %w", err)
	}

	start := time.Now()
	now := time.Now().UTC()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM segments").Scan(&count); err != nil {
		return fmt.Errorf("failed to count segments: %w", err)
	}

	const query = `
		INSERT INTO segments (id, name, priority, configuration, created, changed)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.Exec(query, seg.ID, seg.Name, count, string(configuration), database.FormatTime(now), database.FormatTime(now)); err != nil {
		r.logger.Database().Error("Segment insert failed", "error", err.Error(), "segmentId", seg.ID)
		return fmt.Errorf("failed to insert segment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit segment: %w", err)
	}

	seg.Priority = count
	seg.Created = now
	seg.Changed = now

	r.logger.Database().Info("Segment created", "segmentId", seg.ID, "priority", count, "duration", time.Since(start))
	return nil
}

// Update replaces the name and configuration of an existing segment.
// Priority is only changed through Reorder.
func (r *SQLSegmentRepository) Update(seg *campaigns.Segment) error {
	configuration, err := json.Marshal(seg.Configuration)
	if err != nil {
		return fmt.Errorf("failed to encode segment configuration: %w", err)
	}

	now := time.Now().UTC()
	const query = `UPDATE segments SET name = ?, configuration = ?, changed = ? WHERE id = ?`
	result, err := r.db.Exec(query, seg.Name, string(configuration), database.FormatTime(now), seg.ID)
	if err != nil {
		r.logger.Database().Error("Segment update failed", "error", err.Error(), "segmentId", seg.ID)
		return fmt.Errorf("failed to update segment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return campaigns.ErrSegmentNotFound
	}
	seg.Changed = now

	r.logger.Database().Info("Segment updated", "segmentId", seg.ID)
	return nil
}

// Delete removes a segment and closes the gap in priorities.
func (r *SQLSegmentRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM segments WHERE id = ?", id)
	if err != nil {
		r.logger.Database().Error("Segment delete failed", "error", err.Error(), "segmentId", id)
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return campaigns.ErrSegmentNotFound
	}

	remaining, err := r.findAll(tx)
	if err != nil {
		return err
	}
	if err := writePriorities(tx, remaining); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit segment delete: %w", err)
	}

	r.logger.Database().Info("Segment deleted", "segmentId", id, "remaining", len(remaining))
	return nil
}

// Reorder moves the listed segments to the front in the given order. Unknown
// ids are ignored and unlisted segments keep their relative order behind them.
func (r *SQLSegmentRepository) Reorder(ids []string) error {
	start := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := r.findAll(tx)
	if err != nil {
		return err
	}
	byID := campaigns.NewSegmentSet(current)

	ordered := make([]*campaigns.Segment, 0, len(current))
	placed := make(map[string]bool, len(current))
	for _, id := range ids {
		if seg, ok := byID[id]; ok && !placed[id] {
			ordered = append(ordered, seg)
			placed[id] = true
		}
	}
	for _, seg := range current {
		if !placed[seg.ID] {
			ordered = append(ordered, seg)
		}
	}

	if err := writePriorities(tx, ordered); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit segment order: %w", err)
	}

	r.logger.Database().Info("Segments reordered", "count", len(ordered), "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, "BULK_UPDATE segments priority", time.Since(start))
	return nil
}

func writePriorities(tx *sql.Tx, ordered []*campaigns.Segment) error {
	campaigns.Reindex(ordered)
	stmt, err := tx.Prepare("UPDATE segments SET priority = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare priority update: %w", err)
	}
	defer stmt.Close()

	for _, seg := range ordered {
		if _, err := stmt.Exec(seg.Priority, seg.ID); err != nil {
			return fmt.Errorf("failed to update priority of %s: %w", seg.ID, err)
		}
	}
	return nil
}
