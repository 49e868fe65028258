package repair

import (
	"regexp"
	"strings"

	"github.com/hurttlocker/syllabus/internal/classify"
	"github.com/hurttlocker/syllabus/internal/event"
)

// RecoveredConfidence is assigned to events synthesized from bare
// title/date pairs, where nothing else about the event survived.
const RecoveredConfidence = 0.5

// Strategy is one partial-recovery tier for output that stayed unparseable
// after repair and balancing.
type Strategy struct {
	Name    string
	Recover func(s string) []RawEvent
}

// DefaultStrategies is the recovery chain, tried in order until one yields
// at least one event.
var DefaultStrategies = []Strategy{
	{Name: "flat_objects", Recover: recoverFlatObjects},
	{Name: "events_fragments", Recover: recoverEventsFragments},
	{Name: "title_date_pairs", Recover: recoverTitleDatePairs},
}

var (
	flatObjectRE    = regexp.MustCompile(`\{[^{}]*"title"\s*:[^{}]*\}`)
	eventsArrayRE   = regexp.MustCompile(`"events"\s*:\s*\[`)
	fragmentSplitRE = regexp.MustCompile(`\}\s*,\s*\{`)
	titleDateRE     = regexp.MustCompile(`"title"\s*:\s*"([^"]{1,200})"[^{}]{0,400}?"date"\s*:\s*"([^"]{1,40})"`)
	dateTitleRE     = regexp.MustCompile(`"date"\s*:\s*"([^"]{1,40})"[^{}]{0,400}?"title"\s*:\s*"([^"]{1,200})"`)
)

// decodeFragment decodes one standalone event object, or nothing.
func decodeFragment(frag string) (RawEvent, bool) {
	events, err := Decode([]byte(frag))
	if err != nil || len(events) != 1 {
		return RawEvent{}, false
	}
	return events[0], true
}

// recoverFlatObjects parses every flat object that has a title key on its
// own, skipping the ones that fail.
func recoverFlatObjects(s string) []RawEvent {
	var out []RawEvent
	for _, m := range flatObjectRE.FindAllString(s, -1) {
		if ev, ok := decodeFragment(m); ok {
			out = append(out, ev)
		}
	}
	return out
}

// recoverEventsFragments splits the events array on object boundaries and
// re-wraps each piece as its own object.
func recoverEventsFragments(s string) []RawEvent {
	loc := eventsArrayRE.FindStringIndex(s)
	if loc == nil {
		return nil
	}
	body := strings.TrimSpace(s[loc[1]:])
	body = strings.TrimRight(body, " ]}")

	var out []RawEvent
	for _, frag := range fragmentSplitRE.Split(body, -1) {
		frag = strings.Trim(strings.TrimSpace(frag), "{}")
		if frag == "" {
			continue
		}
		if ev, ok := decodeFragment("{" + frag + "}"); ok {
			out = append(out, ev)
		}
	}
	return out
}

// recoverTitleDatePairs ignores structure and pulls title/date pairs out of
// the text, inferring each type from the text around the pair.
func recoverTitleDatePairs(s string) []RawEvent {
	var out []RawEvent
	add := func(title, date string, start, end int) {
		// the rest of this object first, then the neighbourhood
		typ := classify.InferType(s[start:objectEnd(s, end, 200)])
		if typ == event.Other {
			typ = classify.InferType(window(s, start, end, 120))
		}
		out = append(out, RawEvent{
			Title:         title,
			Date:          date,
			EventType:     string(typ),
			Confidence:    RecoveredConfidence,
			HasConfidence: true,
		})
	}
	for _, idx := range titleDateRE.FindAllStringSubmatchIndex(s, -1) {
		add(s[idx[2]:idx[3]], s[idx[4]:idx[5]], idx[0], idx[1])
	}
	if len(out) == 0 {
		for _, idx := range dateTitleRE.FindAllStringSubmatchIndex(s, -1) {
			add(s[idx[4]:idx[5]], s[idx[2]:idx[3]], idx[0], idx[1])
		}
	}
	return out
}

// objectEnd returns the offset of the first brace at or after from, at most
// limit bytes away.
func objectEnd(s string, from, limit int) int {
	end := from + limit
	if end > len(s) {
		end = len(s)
	}
	if i := strings.IndexAny(s[from:end], "{}"); i >= 0 {
		return from + i
	}
	for end < len(s) && !isRuneStart(s[end]) {
		end++
	}
	return end
}

// window returns s[start:end] widened by pad bytes on both sides, clipped
// to rune boundaries.
func window(s string, start, end, pad int) string {
	from, to := start-pad, end+pad
	if from < 0 {
		from = 0
	}
	if to > len(s) {
		to = len(s)
	}
	for from > 0 && !isRuneStart(s[from]) {
		from--
	}
	for to < len(s) && !isRuneStart(s[to]) {
		to++
	}
	return s[from:to]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
