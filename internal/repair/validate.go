package repair

import (
	"strings"

	"github.com/hurttlocker/syllabus/internal/classify"
	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/event"
)

// DefaultConfidence is assigned to model events that carry no confidence.
const DefaultConfidence = 0.7

// Validator applies the field-level rules every decoded or recovered event
// must pass before it leaves the package.
type Validator struct {
	dates *dates.Normalizer
}

// NewValidator creates a Validator that normalizes dates with n. A nil n
// uses the default academic anchor.
func NewValidator(n *dates.Normalizer) *Validator {
	if n == nil {
		n = dates.New(dates.DefaultAnchor())
	}
	return &Validator{dates: n}
}

// Dates returns the validator's date normalizer.
func (v *Validator) Dates() *dates.Normalizer {
	return v.dates
}

// Validate converts raw into an ExtractedEvent. ok is false only when the
// event carries nothing usable: no title, no description and no date.
func (v *Validator) Validate(raw RawEvent) (event.ExtractedEvent, bool) {
	title := strings.TrimSpace(raw.Title)
	desc := strings.TrimSpace(raw.Description)
	rawDate := strings.TrimSpace(raw.Date)
	if title == "" && desc == "" && rawDate == "" {
		return event.ExtractedEvent{}, false
	}

	typ, ok := event.ParseEventType(raw.EventType)
	if !ok {
		typ = classify.InferType(title + " " + desc)
	}

	title = classify.CleanTitle(title)
	if len([]rune(title)) < classify.MinTitleLength {
		title = classify.GenericTitle(classify.Classify(desc).Keyword, typ)
	}

	start, _ := v.dates.Parse(rawDate)
	e := event.ExtractedEvent{
		Title:       title,
		Date:        start.String(),
		Description: event.Truncate(desc, event.MaxDescriptionLength),
		Location:    strings.TrimSpace(raw.Location),
		EventType:   typ,
		Confidence:  DefaultConfidence,
	}
	if raw.HasConfidence {
		e.Confidence = event.ClampConfidence(raw.Confidence)
	}
	if end, ok := v.dates.Parse(raw.EndDate); ok && strings.TrimSpace(raw.EndDate) != "" && !end.Date.Before(start.Date) {
		e.EndDate = end.String()
	}
	return event.Normalize(e), true
}

// ValidateAll validates each raw event and drops the unusable ones.
func (v *Validator) ValidateAll(raws []RawEvent) []event.ExtractedEvent {
	out := make([]event.ExtractedEvent, 0, len(raws))
	for _, r := range raws {
		if e, ok := v.Validate(r); ok {
			out = append(out, e)
		}
	}
	return out
}
