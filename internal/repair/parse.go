package repair

import (
	"strings"

	"github.com/hurttlocker/syllabus/internal/event"
)

// Parse methods, reported in Result.Method.
const (
	MethodDirect   = "direct"
	MethodRepaired = "repaired"
	MethodBalanced = "balanced"
	MethodNone     = "none"
	// recovery results are reported as "recovered:<strategy name>"
	methodRecoveredPrefix = "recovered:"
)

// Result is the outcome of parsing one model response.
type Result struct {
	Events []event.ExtractedEvent
	Method string
}

// Recovered reports whether the events came from a partial-recovery strategy.
func (r Result) Recovered() bool {
	return strings.HasPrefix(r.Method, methodRecoveredPrefix)
}

// Parser runs the full repair cascade over model output.
type Parser struct {
	validator  *Validator
	rules      []Rule
	strategies []Strategy
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRules replaces the repair rule table.
func WithRules(rules []Rule) ParserOption {
	return func(p *Parser) { p.rules = rules }
}

// WithStrategies replaces the recovery chain.
func WithStrategies(strategies []Strategy) ParserOption {
	return func(p *Parser) { p.strategies = strategies }
}

// NewParser creates a Parser. A nil validator uses the default anchor.
func NewParser(v *Validator, opts ...ParserOption) *Parser {
	if v == nil {
		v = NewValidator(nil)
	}
	p := &Parser{
		validator:  v,
		rules:      DefaultRules,
		strategies: DefaultStrategies,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes raw into validated events. Valid JSON is decoded directly;
// otherwise the repaired text, then the balanced text, then each recovery
// strategy is tried. It never fails: unrecoverable input gives no events
// and MethodNone.
func (p *Parser) Parse(raw string) Result {
	direct := strings.TrimSpace(raw)
	if direct == "" {
		return Result{Method: MethodNone}
	}
	if raws, err := Decode([]byte(direct)); err == nil {
		return Result{Events: p.validator.ValidateAll(raws), Method: MethodDirect}
	}

	repaired := RepairWith(raw, p.rules)
	if raws, err := Decode([]byte(repaired)); err == nil {
		return Result{Events: p.validator.ValidateAll(raws), Method: MethodRepaired}
	}

	balanced := Balance(repaired)
	if raws, err := Decode([]byte(balanced)); err == nil {
		if events := p.validator.ValidateAll(raws); len(events) > 0 {
			return Result{Events: events, Method: MethodBalanced}
		}
	}

	for _, s := range p.strategies {
		if events := p.validator.ValidateAll(s.Recover(repaired)); len(events) > 0 {
			return Result{Events: events, Method: methodRecoveredPrefix + s.Name}
		}
	}
	return Result{Method: MethodNone}
}
