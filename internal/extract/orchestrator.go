package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hurttlocker/syllabus/internal/classify"
	"github.com/hurttlocker/syllabus/internal/event"
)

// DefaultAttemptTimeout bounds a single extractor attempt.
const DefaultAttemptTimeout = 3 * time.Minute

// MethodEmpty is reported when the input holds no text at all.
const MethodEmpty = "empty"

// Attempt records one extractor run.
type Attempt struct {
	Extractor string        `json:"extractor"`
	Events    int           `json:"events"`
	Err       string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Result is the outcome of Orchestrator.Extract.
type Result struct {
	Events   []event.ExtractedEvent `json:"events"`
	Text     string                 `json:"text"`
	Method   string                 `json:"method"`
	Attempts []Attempt              `json:"attempts"`
}

// Orchestrator runs generative extractors in priority order and falls back
// to rules. It never fails.
type Orchestrator struct {
	extractors     []Extractor
	rules          *RuleExtractor
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExtractors sets the generative extractors, highest priority first.
func WithExtractors(xs ...Extractor) Option {
	return func(o *Orchestrator) { o.extractors = append(o.extractors, xs...) }
}

// WithRules replaces the fallback rule extractor.
func WithRules(r *RuleExtractor) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rules = r
		}
	}
}

// WithAttemptTimeout bounds each extractor attempt. d <= 0 disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.attemptTimeout = d }
}

// WithLogger sets the logger for attempt diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an Orchestrator. Without WithExtractors it runs
// rules only.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:          NewRuleExtractor(nil),
		attemptTimeout: DefaultAttemptTimeout,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract produces the final event list for one document. The first
// extractor returning at least one event wins; if none does, the rule
// extractor runs on the same text.
func (o *Orchestrator) Extract(ctx context.Context, text, label string) *Result {
	clean := Sanitize(text)
	res := &Result{Text: clean, Events: []event.ExtractedEvent{}}
	if strings.TrimSpace(clean) == "" {
		res.Method = MethodEmpty
		return res
	}

	for _, x := range o.extractors {
		if ctx.Err() != nil {
			break
		}
		events, attempt := o.attempt(ctx, x, clean, label)
		res.Attempts = append(res.Attempts, attempt)
		if attempt.Err == "" && len(events) > 0 {
			res.Method = x.Name()
			res.Events = o.finalize(events)
			return res
		}
	}

	start := time.Now()
	events := o.rules.ExtractText(clean)
	res.Attempts = append(res.Attempts, Attempt{
		Extractor: o.rules.Name(),
		Events:    len(events),
		Duration:  time.Since(start),
	})
	res.Method = o.rules.Name()
	res.Events = o.finalize(events)
	o.logger.Info("extraction finished", "label", label, "method", res.Method, "events", len(res.Events))
	return res
}

func (o *Orchestrator) attempt(ctx context.Context, x Extractor, text, label string) (events []event.ExtractedEvent, a Attempt) {
	a.Extractor = x.Name()
	start := time.Now()

	actx := ctx
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			events = nil
			a.Err = fmt.Sprintf("panic: %v", r)
		}
		a.Duration = time.Since(start)
		a.Events = len(events)
		if a.Err != "" {
			o.logger.Warn("extractor failed", "extractor", a.Extractor, "label", label, "error", a.Err, "duration", a.Duration)
		} else {
			o.logger.Info("extractor finished", "extractor", a.Extractor, "label", label, "events", a.Events, "duration", a.Duration)
		}
	}()

	events, err := x.Extract(actx, text, label)
	if err != nil {
		a.Err = err.Error()
		return nil, a
	}
	return events, a
}

// finalize repairs anything a custom extractor let through, then dedups
// and sorts.
func (o *Orchestrator) finalize(events []event.ExtractedEvent) []event.ExtractedEvent {
	n := o.rules.Dates()
	out := make([]event.ExtractedEvent, 0, len(events))
	for _, e := range events {
		e = event.Normalize(e)
		if _, err := e.Day(); err != nil {
			e.Date = n.Normalize(e.Date)
		}
		if e.EndDate != "" {
			end, err := event.ParseDate(e.EndDate)
			start, _ := e.Day()
			if err != nil || end.Before(start) {
				e.EndDate = ""
			}
		}
		if strings.TrimSpace(e.Title) == "" {
			e.Title = classify.GenericTitle("", e.EventType)
		}
		out = append(out, e)
	}
	out = event.Dedup(out)
	assignIDs(out)
	event.SortByDate(out)
	return out
}
