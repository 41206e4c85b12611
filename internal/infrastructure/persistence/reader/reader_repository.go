// Package reader provides the SQL-based implementation of the reader event
// store: reader profiles plus the append-only event log.
package reader

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/domain/reader"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/security"
)

// SQLReaderRepository is the durable implementation of reader.Repository.
type SQLReaderRepository struct {
	db          *database.DB
	logger      *logging.ChanneledLogger
	dedupWindow time.Duration
	now         func() time.Time
}

// NewSQLReaderRepository creates a new instance of the repository. Views of a
// post already seen within dedupWindow are discarded on save.
func NewSQLReaderRepository(db *database.DB, logger *logging.ChanneledLogger, dedupWindow time.Duration) *SQLReaderRepository {
	return &SQLReaderRepository{
		db:          db,
		logger:      logger,
		dedupWindow: dedupWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// GetReader retrieves a reader profile, or a blank unsaved one when absent.
func (r *SQLReaderRepository) GetReader(clientID string) (*reader.Reader, error) {
	start := time.Now()
	r.logger.Database().Debug("Loading reader", "clientId", clientID)

	rd, err := r.loadReader(r.db, clientID)
	if err != nil {
		r.logger.Database().Error("Failed to load reader", "error", err.Error())
		return nil, err
	}
	if rd == nil {
		rd = reader.NewReader(clientID, r.now())
	}

	database.CheckAndLogSlowQuery(r.logger, "SELECT readers BY client_id", time.Since(start))
	return rd, nil
}

func (r *SQLReaderRepository) loadReader(q queryer, clientID string) (*reader.Reader, error) {
	const query = `
		SELECT client_id, date_created, date_modified, reader_data, is_preview
		FROM readers
		WHERE client_id = ?`

	var (
		rd                reader.Reader
		created, modified string
		readerData        string
		isPreview         int
	)
	err := q.QueryRow(query, clientID).Scan(&rd.ClientID, &created, &modified, &readerData, &isPreview)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load reader: %w", err)
	}

	if rd.DateCreated, err = database.ParseTime(created); err != nil {
		return nil, err
	}
	if rd.DateModified, err = database.ParseTime(modified); err != nil {
		return nil, err
	}
	if readerData != "" {
		if err := json.Unmarshal([]byte(readerData), &rd.ReaderData); err != nil {
			r.logger.Database().Warn("Discarding malformed reader data", "error", err.Error())
		}
	}
	if rd.ReaderData.Views == nil {
		rd.ReaderData.Views = make(map[string]int)
	}
	if rd.ReaderData.Category == nil {
		rd.ReaderData.Category = make(map[string]int)
	}
	rd.IsPreview = isPreview != 0
	return &rd, nil
}

// GetReaderEvents retrieves events newest-first, filtered by type and context.
func (r *SQLReaderRepository) GetReaderEvents(clientID string, types []reader.EventType, contexts []string) ([]*reader.Event, error) {
	if types == nil {
		types = reader.TemporaryEventTypes
	}
	if len(types) == 0 {
		return []*reader.Event{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, client_id, date_created, type, context, value
		FROM reader_events
		WHERE client_id = ? AND type IN (%s)`, database.Placeholders(len(types)))

	args := make([]any, 0, 1+len(types)+len(contexts))
	args = append(args, clientID)
	for _, t := range types {
		args = append(args, string(t))
	}
	if len(contexts) > 0 {
		query += fmt.Sprintf(" AND context IN (%s)", database.Placeholders(len(contexts)))
		for _, c := range contexts {
			args = append(args, c)
		}
	}
	query += " ORDER BY date_created DESC, id DESC"

	start := time.Now()
	r.logger.Database().Debug("Loading reader events", "types", types, "contexts", contexts)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query reader events", "error", err.Error())
		return nil, fmt.Errorf("failed to query reader events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		r.logger.Database().Error("Failed to scan reader events", "error", err.Error())
		return nil, err
	}

	r.logger.Database().Debug("Reader events loaded", "count", len(events), "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return events, nil
}

func scanEvents(rows *sql.Rows) ([]*reader.Event, error) {
	events := []*reader.Event{}
	for rows.Next() {
		var (
			ev        reader.Event
			created   string
			eventType string
			context   sql.NullString
			value     sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.ClientID, &created, &eventType, &context, &value); err != nil {
			return nil, fmt.Errorf("failed to scan reader event: %w", err)
		}
		t, err := database.ParseTime(created)
		if err != nil {
			return nil, err
		}
		ev.DateCreated = t
		ev.Type = reader.EventType(eventType)
		if context.Valid {
			ev.Context = reader.EventContext(context.String)
		}
		if value.Valid && value.String != "" {
			if err := json.Unmarshal([]byte(value.String), &ev.Value); err != nil {
				return nil, fmt.Errorf("failed to decode event value: %w", err)
			}
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reader events: %w", err)
	}
	return events, nil
}

// viewIndex remembers the most recent time each post or request was viewed.
type viewIndex struct {
	posts    map[string]time.Time
	requests map[string]time.Time
	window   time.Duration
}

func (v *viewIndex) add(ev *reader.Event) {
	if id := ev.PostID(); id != "" {
		if ev.DateCreated.After(v.posts[id]) {
			v.posts[id] = ev.DateCreated
		}
		return
	}
	if key := ev.RequestKey(); key != "" {
		if ev.DateCreated.After(v.requests[key]) {
			v.requests[key] = ev.DateCreated
		}
	}
}

func (v *viewIndex) seen(ev *reader.Event) bool {
	within := func(t time.Time) bool {
		d := ev.DateCreated.Sub(t)
		if d < 0 {
			d = -d
		}
		return d <= v.window
	}
	if id := ev.PostID(); id != "" {
		t, ok := v.posts[id]
		return ok && within(t)
	}
	if key := ev.RequestKey(); key != "" {
		t, ok := v.requests[key]
		return ok && within(t)
	}
	return false
}

// SaveReaderEvents appends events inside one transaction. Duplicate views are
// dropped; accepted views bump the reader's view and category counters.
func (r *SQLReaderRepository) SaveReaderEvents(clientID string, events []*reader.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	start := time.Now()
	now := r.now()
	r.logger.Database().Debug("Saving reader events", "count", len(events))

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	oldest := now
	hasViews := false
	for _, ev := range events {
		if ev.DateCreated.IsZero() {
			ev.DateCreated = now
		}
		if ev.Type == reader.EventView {
			hasViews = true
			if ev.DateCreated.Before(oldest) {
				oldest = ev.DateCreated
			}
		}
	}

	index := &viewIndex{posts: map[string]time.Time{}, requests: map[string]time.Time{}, window: r.dedupWindow}
	if hasViews {
		if err := r.loadViewIndex(tx, clientID, oldest.Add(-r.dedupWindow), index); err != nil {
			return 0, err
		}
	}

	rd, err := r.loadReader(tx, clientID)
	if err != nil {
		return 0, err
	}
	if rd == nil {
		rd = reader.NewReader(clientID, now)
	}

	const insert = `
		INSERT INTO reader_events (id, client_id, date_created, type, context, value)
		VALUES (?, ?, ?, ?, ?, ?)`

	accepted := 0
	for _, ev := range events {
		ev.ClientID = clientID
		if ev.Type == reader.EventView {
			if index.seen(ev) {
				r.logger.Database().Debug("Discarding duplicate view", "postId", ev.PostID())
				continue
			}
			index.add(ev)
			countView(rd, ev)
		}
		if ev.ID == "" {
			ev.ID = security.GenerateULID()
		}

		var value sql.NullString
		if ev.Value != nil {
			b, err := json.Marshal(ev.Value)
			if err != nil {
				return 0, fmt.Errorf("failed to encode event value: %w", err)
			}
			value = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := tx.Exec(insert, ev.ID, clientID, database.FormatTime(ev.DateCreated), string(ev.Type),
			database.NullString(string(ev.Context)), value); err != nil {
			r.logger.Database().Error("Reader event insert failed", "error", err.Error(), "type", ev.Type)
			return 0, fmt.Errorf("failed to store reader event: %w", err)
		}
		accepted++
	}

	if accepted > 0 {
		rd.DateModified = now
		if err := r.upsertReader(tx, rd); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Database().Error("Reader event commit failed", "error", err.Error())
		return 0, fmt.Errorf("failed to commit reader events: %w", err)
	}

	r.logger.Database().Info("Reader events saved", "submitted", len(events), "accepted", accepted, "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, "BULK_INSERT reader_events", time.Since(start))
	return accepted, nil
}

func countView(rd *reader.Reader, ev *reader.Event) {
	context := string(ev.Context)
	if context == "" {
		context = "unknown"
	}
	rd.ReaderData.Views[context]++
	for _, category := range ev.Categories() {
		rd.ReaderData.Category[category]++
	}
}

func (r *SQLReaderRepository) loadViewIndex(tx *sql.Tx, clientID string, since time.Time, index *viewIndex) error {
	const query = `
		SELECT id, client_id, date_created, type, context, value
		FROM reader_events
		WHERE client_id = ? AND type = ? AND date_created >= ?`

	rows, err := tx.Query(query, clientID, string(reader.EventView), database.FormatTime(since))
	if err != nil {
		return fmt.Errorf("failed to query existing views: %w", err)
	}
	defer rows.Close()

	existing, err := scanEvents(rows)
	if err != nil {
		return err
	}
	for _, ev := range existing {
		index.add(ev)
	}
	return nil
}

// SaveReader upserts the reader profile. Last writer wins.
func (r *SQLReaderRepository) SaveReader(rd *reader.Reader) error {
	if rd == nil || rd.ClientID == "" {
		return fmt.Errorf("reader without client id")
	}
	start := time.Now()
	if rd.DateCreated.IsZero() {
		rd.DateCreated = r.now()
	}
	rd.DateModified = r.now()
	if err := r.upsertReader(r.db, rd); err != nil {
		r.logger.Database().Error("Reader upsert failed", "error", err.Error())
		return err
	}
	r.logger.Database().Info("Reader saved", "duration", time.Since(start))
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (r *SQLReaderRepository) upsertReader(e execer, rd *reader.Reader) error {
	const query = `
		INSERT INTO readers (client_id, date_created, date_modified, reader_data, is_preview)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			date_modified = excluded.date_modified,
			reader_data = excluded.reader_data,
			is_preview = excluded.is_preview`

	data, err := json.Marshal(rd.ReaderData)
	if err != nil {
		return fmt.Errorf("failed to encode reader data: %w", err)
	}
	isPreview := 0
	if rd.IsPreview {
		isPreview = 1
	}
	if _, err := e.Exec(query, rd.ClientID, database.FormatTime(rd.DateCreated), database.FormatTime(rd.DateModified), string(data), isPreview); err != nil {
		return fmt.Errorf("failed to upsert reader: %w", err)
	}
	return nil
}

// FindClientIDsByEvent lists distinct client ids with a matching event, ordered
// by when each client first recorded one.
func (r *SQLReaderRepository) FindClientIDsByEvent(eventType reader.EventType, contexts []string, limit int) ([]string, error) {
	if len(contexts) == 0 {
		return []string{}, nil
	}

	query := fmt.Sprintf(`
		SELECT client_id, MIN(date_created) AS first_seen
		FROM reader_events
		WHERE type = ? AND context IN (%s)
		GROUP BY client_id
		ORDER BY first_seen ASC, client_id ASC`, database.Placeholders(len(contexts)))

	args := make([]any, 0, 2+len(contexts))
	args = append(args, string(eventType))
	for _, c := range contexts {
		args = append(args, c)
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	start := time.Now()
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query linked client ids", "error", err.Error())
		return nil, fmt.Errorf("failed to query linked client ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id, firstSeen string
		if err := rows.Scan(&id, &firstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return ids, nil
}
