// Package store persists syllabi and their extracted events in SQLite.
//
// One database file holds both tables. Events belong to a syllabus and are
// removed with it. Event ids are the ids the extractors assigned, so an
// event keeps its identity from extraction through review and export.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/syllabus/internal/event"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.syllabus/syllabus.db"

// ErrNotFound is returned when a syllabus or event does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid is returned when an update would leave an event invalid.
var ErrInvalid = errors.New("invalid event")

// Syllabus is one stored extraction run.
type Syllabus struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Text        string    `json:"text,omitempty"`
	ContentHash string    `json:"contentHash"`
	Method      string    `json:"method"`
	EventCount  int       `json:"eventCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SaveParams describes a syllabus to store with its events.
type SaveParams struct {
	Label  string
	Text   string
	Method string
	Events []event.ExtractedEvent
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	SyllabusID   string
	ApprovedOnly bool
}

// EventPatch holds a partial event update. Nil fields are left alone.
// Dates must already be in canonical form.
type EventPatch struct {
	Title       *string
	Date        *string
	EndDate     *string
	Description *string
	Location    *string
	EventType   *event.EventType
	Approved    *bool
}

// StoredEvent is an event with its owning syllabus.
type StoredEvent struct {
	event.ExtractedEvent
	SyllabusID string    `json:"syllabusId"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface.
type Store interface {
	SaveSyllabus(ctx context.Context, p SaveParams) (*Syllabus, error)
	GetSyllabus(ctx context.Context, id string) (*Syllabus, error)
	ListSyllabi(ctx context.Context) ([]*Syllabus, error)
	DeleteSyllabus(ctx context.Context, id string) error

	ListEvents(ctx context.Context, f EventFilter) ([]*StoredEvent, error)
	GetEvent(ctx context.Context, id string) (*StoredEvent, error)
	UpdateEvent(ctx context.Context, id string, p EventPatch) (*StoredEvent, error)
	SetApproved(ctx context.Context, syllabusID string, approved bool) (int64, error)

	Close() error
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
