package event

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in     string
		want   EventType
		wantOK bool
	}{
		{"exam", Exam, true},
		{"Exam", Exam, true},
		{"office_hours", OfficeHours, true},
		{"Office Hours", OfficeHours, true},
		{"officeHours", OfficeHours, true},
		{"assignment", Homework, true},
		{"Midterm", Exam, true},
		{"quizzes", Quiz, true},
		{"", Other, false},
		{"party", Other, false},
	}
	for _, tt := range tests {
		got, ok := ParseEventType(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseEventType(%q) = %q,%v; want %q,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	tests := map[float64]float64{
		-0.5:       0,
		0:          0,
		0.42:       0.42,
		1:          1,
		7:          1,
		math.NaN(): 0,
	}
	for in, want := range tests {
		if got := ClampConfidence(in); got != want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	e := Normalize(ExtractedEvent{
		Title:       "  " + strings.Repeat("long title ", 30),
		Description: strings.Repeat("x", 2000),
		EventType:   "Quizzes",
		Confidence:  3,
	})
	if len([]rune(e.Title)) > MaxTitleLength {
		t.Errorf("title not truncated: %d runes", len([]rune(e.Title)))
	}
	if len([]rune(e.Description)) > MaxDescriptionLength {
		t.Errorf("description not truncated: %d runes", len([]rune(e.Description)))
	}
	if e.EventType != Quiz {
		t.Errorf("event type = %q, want quiz", e.EventType)
	}
	if e.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", e.Confidence)
	}

	unknown := Normalize(ExtractedEvent{Title: "x", EventType: "banana"})
	if unknown.EventType != Other {
		t.Errorf("unknown type normalized to %q, want other", unknown.EventType)
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2025-10-15", "2025-10-15T23:59:00", "2025-10-15T23:59"} {
		d, err := ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", s, err)
		}
		if d.Year() != 2025 || d.Month() != 10 || d.Day() != 15 {
			t.Errorf("ParseDate(%q) = %v", s, d)
		}
	}
	if _, err := ParseDate("10/15"); err == nil {
		t.Error("expected error for non-canonical date")
	}
}

func TestDedupKeepsFirstOccurrence(t *testing.T) {
	events := []ExtractedEvent{
		{Title: "Final Exam", Date: "2025-12-18", EventType: Exam, Confidence: 0.9},
		{Title: "final  exam", Date: "2025-12-18", EventType: Exam, Confidence: 0.4},
		{Title: "Final Exam", Date: "2025-12-18", EventType: Other, Confidence: 0.5},
		{Title: "Final Exam", Date: "2025-12-19", EventType: Exam, Confidence: 0.5},
	}
	got := Dedup(events)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(got), got)
	}
	if got[0].Confidence != 0.9 {
		t.Errorf("first occurrence not kept: confidence %v", got[0].Confidence)
	}
}

func TestDedupIdempotent(t *testing.T) {
	events := []ExtractedEvent{
		{Title: "Quiz 1", Date: "2025-02-03", EventType: Quiz},
		{Title: "Quiz 1", Date: "2025-02-03", EventType: Quiz},
		{Title: "HW 1", Date: "2025-02-04", EventType: Homework},
		{Title: "Quiz 1", Date: "2025-02-03", EventType: Quiz},
	}
	once := Dedup(events)
	twice := Dedup(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedup not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestDedupByTitleDate(t *testing.T) {
	events := []ExtractedEvent{
		{Title: "Final Exam", Date: "2025-12-18", EventType: Exam},
		{Title: "Final Exam", Date: "2025-12-18", EventType: Other},
	}
	if got := DedupByTitleDate(events); len(got) != 1 {
		t.Errorf("expected 1 event, got %d", len(got))
	}
}

func TestSortByDate(t *testing.T) {
	events := []ExtractedEvent{
		{Title: "c", Date: "2025-12-01"},
		{Title: "a", Date: "2025-09-01T10:00:00"},
		{Title: "b", Date: "2025-09-01"},
	}
	SortByDate(events)
	got := []string{events[0].Title, events[1].Title, events[2].Title}
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	got := Truncate("alpha beta gamma delta", 12)
	if got != "alpha beta" {
		t.Errorf("Truncate at word boundary = %q", got)
	}
}
