// Package event defines ExtractedEvent, the single value type produced by the
// extraction pipeline, along with the closed EventType enumeration and the
// normalization and deduplication helpers every extractor shares.
package event

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// EventType is the closed set of academic event kinds.
type EventType string

const (
	Lecture     EventType = "lecture"
	Homework    EventType = "homework"
	Exam        EventType = "exam"
	Quiz        EventType = "quiz"
	Project     EventType = "project"
	OfficeHours EventType = "officeHours"
	Other       EventType = "other"
)

// Types lists every valid EventType in display order.
var Types = []EventType{Lecture, Homework, Exam, Quiz, Project, OfficeHours, Other}

const (
	// MaxTitleLength caps titles coming from any extractor.
	MaxTitleLength = 100
	// MaxDescriptionLength caps descriptions; corrupted model output can
	// otherwise carry the whole document in one field.
	MaxDescriptionLength = 500

	// DateLayout is the canonical date-only format.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the canonical local datetime format.
	DateTimeLayout = "2006-01-02T15:04:05"
)

// ExtractedEvent is one dated academic event found in a syllabus.
type ExtractedEvent struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	EndDate     string    `json:"endDate,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	EventType   EventType `json:"eventType"`
	Confidence  float64   `json:"confidence"`
	Approved    bool      `json:"approved"`
}

// Valid reports whether t is a member of the enum.
func (t EventType) Valid() bool {
	switch t {
	case Lecture, Homework, Exam, Quiz, Project, OfficeHours, Other:
		return true
	}
	return false
}

// typeAliases maps loose spellings seen in model output to the enum.
var typeAliases = map[string]EventType{
	"lecture":      Lecture,
	"lectures":     Lecture,
	"class":        Lecture,
	"seminar":      Lecture,
	"lab":          Lecture,
	"discussion":   Lecture,
	"homework":     Homework,
	"hw":           Homework,
	"assignment":   Homework,
	"assignments":  Homework,
	"problemset":   Homework,
	"deadline":     Homework,
	"exam":         Exam,
	"exams":        Exam,
	"test":         Exam,
	"midterm":      Exam,
	"final":        Exam,
	"finalexam":    Exam,
	"quiz":         Quiz,
	"quizzes":      Quiz,
	"project":      Project,
	"presentation": Project,
	"paper":        Project,
	"report":       Project,
	"officehours":  OfficeHours,
	"officehour":   OfficeHours,
	"other":        Other,
	"event":        Other,
	"holiday":      Other,
}

// ParseEventType maps s to the enum. It ignores case, spaces, dashes and
// underscores. ok is false when s matches neither a member nor an alias.
func ParseEventType(s string) (EventType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	if key == "" {
		return Other, false
	}
	if t, ok := typeAliases[key]; ok {
		return t, true
	}
	return Other, false
}

// ClampConfidence forces f into [0,1]. NaN becomes 0.
func ClampConfidence(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Truncate cuts s to at most max runes, preferring a word boundary.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

// Normalize enforces the field-level invariants that do not need date
// parsing: bounded title/description, enum closure and confidence bounds.
func Normalize(e ExtractedEvent) ExtractedEvent {
	e.Title = Truncate(strings.TrimSpace(e.Title), MaxTitleLength)
	e.Description = Truncate(strings.TrimSpace(e.Description), MaxDescriptionLength)
	e.Location = strings.TrimSpace(e.Location)
	if !e.EventType.Valid() {
		t, _ := ParseEventType(string(e.EventType))
		e.EventType = t
	}
	e.Confidence = ClampConfidence(e.Confidence)
	return e
}

// ParseDate parses a canonical date or datetime string in local calendar terms.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, DateTimeLayout, "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid event date %q", s)
}

// Day returns the event's start date.
func (e ExtractedEvent) Day() (time.Time, error) {
	return ParseDate(e.Date)
}

// HasTime reports whether the event carries a time of day.
func (e ExtractedEvent) HasTime() bool {
	return strings.Contains(e.Date, "T")
}

func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// Dedup removes events sharing the (title, date, eventType) triple, keeping
// the first occurrence and its confidence. Order is preserved, so
// Dedup(Dedup(x)) == Dedup(x).
func Dedup(events []ExtractedEvent) []ExtractedEvent {
	type tripleKey struct {
		title string
		date  string
		typ   EventType
	}
	seen := make(map[tripleKey]bool, len(events))
	out := make([]ExtractedEvent, 0, len(events))
	for _, e := range events {
		k := tripleKey{titleKey(e.Title), e.Date, e.EventType}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// DedupByTitleDate removes events sharing the (title, date) pair.
func DedupByTitleDate(events []ExtractedEvent) []ExtractedEvent {
	seen := make(map[string]bool, len(events))
	out := make([]ExtractedEvent, 0, len(events))
	for _, e := range events {
		k := titleKey(e.Title) + "|" + e.Date
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// SortByDate orders events by date ascending. Ties keep input order.
func SortByDate(events []ExtractedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date < events[j].Date
	})
}
