package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/syllabus/internal/classify"
	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/event"
)

const (
	// DefaultMaxEvents caps the rule extractor's output on dense documents.
	DefaultMaxEvents = 25

	// minLineLength drops lines too short to hold a date and a title.
	minLineLength = 5

	// dueBoost is added to the confidence of lines with deadline language.
	dueBoost = 0.1
)

// RuleExtractor finds events with date patterns and keyword classification.
// It needs no network, never errors and is safe for concurrent use.
type RuleExtractor struct {
	dates        *dates.Normalizer
	maxEvents    int
	expandRanges bool
}

// RuleOption configures a RuleExtractor.
type RuleOption func(*RuleExtractor)

// WithMaxEvents caps the number of returned events. n <= 0 means unlimited.
func WithMaxEvents(n int) RuleOption {
	return func(r *RuleExtractor) { r.maxEvents = n }
}

// WithRangeExpansion controls whether "March 5-7" becomes one event per day
// (the default) or a single event with an end date.
func WithRangeExpansion(on bool) RuleOption {
	return func(r *RuleExtractor) { r.expandRanges = on }
}

// NewRuleExtractor creates a RuleExtractor. A nil normalizer uses the
// default academic anchor.
func NewRuleExtractor(n *dates.Normalizer, opts ...RuleOption) *RuleExtractor {
	if n == nil {
		n = dates.New(dates.DefaultAnchor())
	}
	r := &RuleExtractor{
		dates:        n,
		maxEvents:    DefaultMaxEvents,
		expandRanges: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Extractor.
func (r *RuleExtractor) Name() string { return "rules" }

// Dates returns the normalizer the extractor resolves dates with.
func (r *RuleExtractor) Dates() *dates.Normalizer { return r.dates }

// Extract implements Extractor. The error is always nil.
func (r *RuleExtractor) Extract(_ context.Context, text, _ string) ([]event.ExtractedEvent, error) {
	return r.ExtractText(text), nil
}

// ExtractText runs the rule pipeline over text.
func (r *RuleExtractor) ExtractText(text string) []event.ExtractedEvent {
	var candidates []event.ExtractedEvent
	for _, line := range strings.Split(Sanitize(text), "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minLineLength {
			continue
		}
		candidates = append(candidates, r.extractLine(line)...)
	}

	events := event.DedupByTitleDate(candidates)
	if r.maxEvents > 0 && len(events) > r.maxEvents {
		events = events[:r.maxEvents]
	}
	assignIDs(events)
	return events
}

func (r *RuleExtractor) extractLine(line string) []event.ExtractedEvent {
	if rng, ok := r.dates.FindRange(line); ok {
		base := r.classifyLine(line, rng.From, rng.To)
		if !r.expandRanges {
			base.Date = dates.Format(rng.Start, false)
			base.EndDate = dates.Format(rng.End, false)
			return []event.ExtractedEvent{base}
		}
		days := dates.ExpandRange(rng)
		out := make([]event.ExtractedEvent, 0, len(days))
		for _, d := range days {
			e := base
			e.Date = dates.Format(d, false)
			out = append(out, e)
		}
		return out
	}

	m, ok := r.dates.Find(line)
	if !ok {
		return nil
	}
	e := r.classifyLine(line, m.Start, m.End)
	e.Date = m.String()
	return []event.ExtractedEvent{e}
}

// classifyLine classifies line with the date span [from, to) removed, so
// the date does not end up in the title.
func (r *RuleExtractor) classifyLine(line string, from, to int) event.ExtractedEvent {
	c := classify.Classify(line[:from] + " " + line[to:])
	conf := c.Confidence
	if classify.HasDueLanguage(line) {
		conf += dueBoost
	}
	return event.ExtractedEvent{
		Title:       c.Title,
		Description: event.Truncate(line, event.MaxDescriptionLength),
		EventType:   c.Type,
		Confidence:  event.ClampConfidence(conf),
	}
}
