package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/hurttlocker/syllabus/internal/event"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvents() []event.ExtractedEvent {
	return []event.ExtractedEvent{
		{ID: ulid.Make().String(), Title: "Midterm Exam", Date: "2025-10-15", EventType: event.Exam, Confidence: 0.9},
		{ID: ulid.Make().String(), Title: "Assignment 1", Date: "2025-09-30T23:59:00", EventType: event.Homework, Confidence: 0.95, Description: "Assignment 1 due: 9/30 11:59pm"},
		{ID: ulid.Make().String(), Title: "Fall break", Date: "2025-10-13", EndDate: "2025-10-14", EventType: event.Other, Confidence: 0.6},
	}
}

func saveTestSyllabus(t *testing.T, s Store, label string) *Syllabus {
	t.Helper()
	syl, err := s.SaveSyllabus(context.Background(), SaveParams{
		Label:  label,
		Text:   "Midterm Exam: 10/15\nAssignment 1 due: 9/30 11:59pm\nFall break Oct 13-14",
		Method: "rules",
		Events: testEvents(),
	})
	if err != nil {
		t.Fatalf("SaveSyllabus: %v", err)
	}
	return syl
}

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	ss := s.(*SQLiteStore)
	for _, table := range []string{"meta", "syllabi", "events"} {
		var name string
		err := ss.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	var version string
	if err := ss.db.QueryRow("SELECT value FROM meta WHERE key='schema_version'").Scan(&version); err != nil || version != schemaVersion {
		t.Errorf("schema_version = %q, err %v", version, err)
	}
}

func TestNewStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "syllabus.db")
	s, err := NewStore(StoreConfig{DBPath: path})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	saveTestSyllabus(t, s, "cs101.txt")
	s.Close()

	// reopening runs migrations again and keeps the data
	s, err = NewStore(StoreConfig{DBPath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	list, err := s.ListSyllabi(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 syllabus after reopen, got %d (%v)", len(list), err)
	}
}

func TestSaveAndGetSyllabus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	syl := saveTestSyllabus(t, s, "cs101.txt")

	if syl.ID == "" || syl.EventCount != 3 || len(syl.ContentHash) != 64 {
		t.Fatalf("unexpected saved syllabus: %+v", syl)
	}

	got, err := s.GetSyllabus(ctx, syl.ID)
	if err != nil {
		t.Fatalf("GetSyllabus: %v", err)
	}
	if got.Label != "cs101.txt" || got.Method != "rules" || got.EventCount != 3 {
		t.Errorf("unexpected syllabus: %+v", got)
	}
	if !strings.Contains(got.Text, "Midterm Exam") {
		t.Errorf("text not stored: %q", got.Text)
	}
	if got.ContentHash != HashContent("cs101.txt", got.Text) {
		t.Error("content hash mismatch")
	}
}

func TestSaveSyllabus_RejectsEventWithoutID(t *testing.T) {
	s := newTestStore(t)
	events := testEvents()
	events[1].ID = ""
	_, err := s.SaveSyllabus(context.Background(), SaveParams{Label: "x", Events: events})
	if err == nil {
		t.Fatal("expected error for event without id")
	}
	list, _ := s.ListSyllabi(context.Background())
	if len(list) != 0 {
		t.Error("failed save should not leave a syllabus behind")
	}
}

func TestListSyllabi_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	first := saveTestSyllabus(t, s, "a.txt")
	second := saveTestSyllabus(t, s, "b.txt")

	list, err := s.ListSyllabi(context.Background())
	if err != nil {
		t.Fatalf("ListSyllabi: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 syllabi, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("wrong order: %s, %s", list[0].Label, list[1].Label)
	}
	if list[0].Text != "" {
		t.Error("list should omit text")
	}
}

func TestListEvents_OrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := saveTestSyllabus(t, s, "a.txt")
	saveTestSyllabus(t, s, "b.txt")

	all, err := s.ListEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 events, got %d", len(all))
	}

	mine, err := s.ListEvents(ctx, EventFilter{SyllabusID: a.ID})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	want := []string{"2025-09-30T23:59:00", "2025-10-13", "2025-10-15"}
	if len(mine) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(mine))
	}
	for i, e := range mine {
		if e.Date != want[i] {
			t.Errorf("event %d date = %q, want %q", i, e.Date, want[i])
		}
		if e.SyllabusID != a.ID {
			t.Errorf("event %d belongs to %s", i, e.SyllabusID)
		}
	}
	if mine[1].EndDate != "2025-10-14" || mine[0].Description == "" {
		t.Errorf("fields not round-tripped: %+v", mine[:2])
	}

	approved, err := s.ListEvents(ctx, EventFilter{SyllabusID: a.ID, ApprovedOnly: true})
	if err != nil || len(approved) != 0 {
		t.Fatalf("expected no approved events, got %d (%v)", len(approved), err)
	}
}

func TestSetApproved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	syl := saveTestSyllabus(t, s, "a.txt")

	n, err := s.SetApproved(ctx, syl.ID, true)
	if err != nil || n != 3 {
		t.Fatalf("SetApproved = %d, %v", n, err)
	}
	n, err = s.SetApproved(ctx, syl.ID, true)
	if err != nil || n != 0 {
		t.Fatalf("second SetApproved should change nothing, got %d, %v", n, err)
	}

	approved, _ := s.ListEvents(ctx, EventFilter{SyllabusID: syl.ID, ApprovedOnly: true})
	if len(approved) != 3 {
		t.Errorf("expected 3 approved events, got %d", len(approved))
	}

	if _, err := s.SetApproved(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	syl := saveTestSyllabus(t, s, "a.txt")
	events, _ := s.ListEvents(ctx, EventFilter{SyllabusID: syl.ID})
	target := events[2] // Midterm Exam

	title := "Midterm Exam (Room 101)"
	date := "2025-10-16"
	typ := event.EventType("test")
	approved := true
	updated, err := s.UpdateEvent(ctx, target.ID, EventPatch{Title: &title, Date: &date, EventType: &typ, Approved: &approved})
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if updated.Title != title || updated.Date != date || updated.EventType != event.Exam || !updated.Approved {
		t.Errorf("unexpected update result: %+v", updated)
	}

	got, err := s.GetEvent(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Title != title || got.Date != date || !got.Approved || got.Confidence != 0.9 {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestUpdateEvent_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	syl := saveTestSyllabus(t, s, "a.txt")
	events, _ := s.ListEvents(ctx, EventFilter{SyllabusID: syl.ID})
	id := events[0].ID

	bad := "next tuesday"
	if _, err := s.UpdateEvent(ctx, id, EventPatch{Date: &bad}); err == nil {
		t.Error("expected error for non-canonical date")
	}
	empty := "   "
	if _, err := s.UpdateEvent(ctx, id, EventPatch{Title: &empty}); err == nil {
		t.Error("expected error for empty title")
	}
	if _, err := s.UpdateEvent(ctx, "missing", EventPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, _ := s.GetEvent(ctx, id)
	if got.Date != events[0].Date || got.Title != events[0].Title {
		t.Error("failed update should not change the event")
	}
}

func TestDeleteSyllabus_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := saveTestSyllabus(t, s, "a.txt")
	b := saveTestSyllabus(t, s, "b.txt")

	if err := s.DeleteSyllabus(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSyllabus: %v", err)
	}
	if _, err := s.GetSyllabus(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	left, _ := s.ListEvents(ctx, EventFilter{})
	if len(left) != 3 {
		t.Fatalf("expected 3 events left, got %d", len(left))
	}
	for _, e := range left {
		if e.SyllabusID != b.ID {
			t.Errorf("orphan event %s from %s", e.ID, e.SyllabusID)
		}
	}
	if err := s.DeleteSyllabus(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestHashContent(t *testing.T) {
	if HashContent("a", "bc") == HashContent("ab", "c") {
		t.Error("label and text must be separated in the hash")
	}
	if HashContent("a", "b") != HashContent("a", "b") {
		t.Error("hash must be deterministic")
	}
}
