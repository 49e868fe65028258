package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/syllabus/internal/event"
)

const eventColumns = `id, syllabus_id, title, date, end_date, description, location, event_type, confidence, approved, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*StoredEvent, error) {
	e := &StoredEvent{}
	var typ string
	err := row.Scan(&e.ID, &e.SyllabusID, &e.Title, &e.Date, &e.EndDate, &e.Description,
		&e.Location, &typ, &e.Confidence, &e.Approved, &e.UpdatedAt)
	e.EventType = event.EventType(typ)
	return e, err
}

// ListEvents returns events in date order. Events of one syllabus that share
// a date keep their extraction order.
func (s *SQLiteStore) ListEvents(ctx context.Context, f EventFilter) ([]*StoredEvent, error) {
	var where []string
	var args []any
	if f.SyllabusID != "" {
		where = append(where, "syllabus_id = ?")
		args = append(args, f.SyllabusID)
	}
	if f.ApprovedOnly {
		where = append(where, "approved = 1")
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, syllabus_id, position"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []*StoredEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEvent returns one event.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*StoredEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}
	return e, nil
}

// UpdateEvent applies a patch and returns the updated event. The event is
// re-normalized, so an over-long title is truncated and an unknown type
// becomes "other".
func (s *SQLiteStore) UpdateEvent(ctx context.Context, id string, p EventPatch) (*StoredEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}

	e := cur.ExtractedEvent
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.EventType != nil {
		e.EventType = *p.EventType
	}
	if p.Approved != nil {
		e.Approved = *p.Approved
	}
	e = event.Normalize(e)
	if strings.TrimSpace(e.Title) == "" {
		return nil, fmt.Errorf("event %s: %w: title cannot be empty", id, ErrInvalid)
	}
	if _, err := e.Day(); err != nil {
		return nil, fmt.Errorf("event %s: %w: %v", id, ErrInvalid, err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE events SET title = ?, date = ?, end_date = ?, description = ?, location = ?,
		 event_type = ?, approved = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Date, e.EndDate, e.Description, e.Location, string(e.EventType), e.Approved, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating event %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing event %s: %w", id, err)
	}

	return &StoredEvent{ExtractedEvent: e, SyllabusID: cur.SyllabusID, UpdatedAt: now}, nil
}

// SetApproved approves or rejects every event of a syllabus and returns the
// number of events changed.
func (s *SQLiteStore) SetApproved(ctx context.Context, syllabusID string, approved bool) (int64, error) {
	if _, err := s.GetSyllabus(ctx, syllabusID); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET approved = ?, updated_at = ? WHERE syllabus_id = ? AND approved != ?`,
		approved, time.Now().UTC(), syllabusID, approved,
	)
	if err != nil {
		return 0, fmt.Errorf("approving syllabus %s: %w", syllabusID, err)
	}
	return res.RowsAffected()
}
