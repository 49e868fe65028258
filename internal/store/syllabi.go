package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hurttlocker/syllabus/internal/event"
)

// SaveSyllabus stores a syllabus and its events in one transaction. Events
// without an id are rejected; extractors always assign one.
func (s *SQLiteStore) SaveSyllabus(ctx context.Context, p SaveParams) (*Syllabus, error) {
	label := strings.TrimSpace(p.Label)
	if label == "" {
		label = "untitled"
	}
	syl := &Syllabus{
		ID:          uuid.New().String(),
		Label:       label,
		Text:        p.Text,
		ContentHash: HashContent(label, p.Text),
		Method:      p.Method,
		EventCount:  len(p.Events),
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO syllabi (id, label, content, content_hash, method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		syl.ID, syl.Label, syl.Text, syl.ContentHash, syl.Method, syl.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting syllabus: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, syllabus_id, position, title, date, end_date, description, location, event_type, confidence, approved, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range p.Events {
		if e.ID == "" {
			return nil, fmt.Errorf("event %d (%q) has no id", i, e.Title)
		}
		e = event.Normalize(e)
		_, err := stmt.ExecContext(ctx,
			e.ID, syl.ID, i, e.Title, e.Date, e.EndDate, e.Description, e.Location,
			string(e.EventType), e.Confidence, e.Approved, syl.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing syllabus: %w", err)
	}
	return syl, nil
}

const syllabusColumns = `s.id, s.label, s.content, s.content_hash, s.method, s.created_at,
	(SELECT COUNT(*) FROM events e WHERE e.syllabus_id = s.id)`

func scanSyllabus(row interface{ Scan(...any) error }) (*Syllabus, error) {
	syl := &Syllabus{}
	err := row.Scan(&syl.ID, &syl.Label, &syl.Text, &syl.ContentHash, &syl.Method, &syl.CreatedAt, &syl.EventCount)
	return syl, err
}

// GetSyllabus returns one syllabus with its text.
func (s *SQLiteStore) GetSyllabus(ctx context.Context, id string) (*Syllabus, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+syllabusColumns+` FROM syllabi s WHERE s.id = ?`, id)
	syl, err := scanSyllabus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("syllabus %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting syllabus %s: %w", id, err)
	}
	return syl, nil
}

// ListSyllabi returns all syllabi, newest first. Text is omitted.
func (s *SQLiteStore) ListSyllabi(ctx context.Context) ([]*Syllabus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+syllabusColumns+` FROM syllabi s ORDER BY s.created_at DESC, s.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing syllabi: %w", err)
	}
	defer rows.Close()

	var out []*Syllabus
	for rows.Next() {
		syl, err := scanSyllabus(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning syllabus: %w", err)
		}
		syl.Text = ""
		out = append(out, syl)
	}
	return out, rows.Err()
}

// DeleteSyllabus removes a syllabus and, by cascade, its events.
func (s *SQLiteStore) DeleteSyllabus(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM syllabi WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting syllabus %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting syllabus %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("syllabus %s: %w", id, ErrNotFound)
	}
	return nil
}
