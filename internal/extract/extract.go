// Package extract turns syllabus text into dated academic events.
//
// Two kinds of extractor exist. The RuleExtractor is local, deterministic
// and always available. The GenerativeExtractor prompts an llm.Provider and
// runs the reply through the repair cascade. The Orchestrator tries
// generative extractors in priority order and falls back to rules, so a
// call to Extract always returns a usable, deduplicated, date-sorted list.
package extract

import (
	"context"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"

	"github.com/hurttlocker/syllabus/internal/event"
)

// Extractor produces events from one document.
type Extractor interface {
	Extract(ctx context.Context, text, label string) ([]event.ExtractedEvent, error)
	Name() string
}

// newID returns a fresh event id. ulid.Make is safe for concurrent use.
func newID() string {
	return ulid.Make().String()
}

// assignIDs gives every event without an id a new one.
func assignIDs(events []event.ExtractedEvent) {
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = newID()
		}
	}
}

// Sanitize makes arbitrary input safe to process: invalid UTF-8 is dropped,
// line endings become "\n" and control characters other than tab and
// newline are removed.
func Sanitize(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, text)
}
