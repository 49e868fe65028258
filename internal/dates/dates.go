// Package dates turns the date fragments found in syllabi ("3/5", "March 5th",
// "Week 6", "due 11/15", "Mar 5-9") into concrete local calendar dates.
//
// Year-less fragments resolve against a configured academic-year Anchor, not
// the wall clock: a syllabus usually describes an upcoming or ongoing term.
// All arithmetic uses time.Date year/month/day fields in time.Local so a
// date never shifts by a day through a UTC round trip.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Anchor is the academic-calendar context used to resolve partial dates.
type Anchor struct {
	// AcademicYear is assumed for fragments without a year.
	AcademicYear int
	// TermStart anchors "Week N" references. Snapped to the nearest Monday.
	TermStart time.Time
	// FallbackDays is the offset from TermStart used when nothing parses.
	FallbackDays int
}

const (
	DefaultAcademicYear = 2025
	DefaultFallbackDays = 14

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// DefaultAnchor returns the built-in anchor: academic year 2025, term
// starting Monday 2025-08-25.
func DefaultAnchor() Anchor {
	return Anchor{
		AcademicYear: DefaultAcademicYear,
		TermStart:    time.Date(2025, time.August, 25, 0, 0, 0, 0, time.Local),
		FallbackDays: DefaultFallbackDays,
	}
}

// Result is a resolved date, optionally carrying a time of day.
type Result struct {
	Date    time.Time
	HasTime bool
}

// String formats the result canonically.
func (r Result) String() string {
	return Format(r.Date, r.HasTime)
}

// Normalizer resolves date fragments against an Anchor. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	anchor     Anchor
	termMonday time.Time
}

// New creates a Normalizer. Zero anchor fields take their defaults.
func New(anchor Anchor) *Normalizer {
	def := DefaultAnchor()
	if anchor.AcademicYear <= 0 {
		anchor.AcademicYear = def.AcademicYear
	}
	if anchor.TermStart.IsZero() {
		anchor.TermStart = time.Date(anchor.AcademicYear, time.August, 25, 0, 0, 0, 0, time.Local)
	}
	if anchor.FallbackDays <= 0 {
		anchor.FallbackDays = def.FallbackDays
	}
	ts := anchor.TermStart
	anchor.TermStart = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.Local)
	return &Normalizer{
		anchor:     anchor,
		termMonday: nearestMonday(anchor.TermStart),
	}
}

// Anchor returns the effective anchor.
func (n *Normalizer) Anchor() Anchor {
	return n.anchor
}

// TermMonday returns the Monday that "Week 1" resolves to.
func (n *Normalizer) TermMonday() time.Time {
	return n.termMonday
}

func nearestMonday(t time.Time) time.Time {
	back := (int(t.Weekday()) + 6) % 7 // days since Monday
	if back == 0 {
		return t
	}
	if back <= 3 {
		return t.AddDate(0, 0, -back)
	}
	return t.AddDate(0, 0, 7-back)
}

// Format renders t as YYYY-MM-DD, or YYYY-MM-DDTHH:MM:SS when hasTime.
func Format(t time.Time, hasTime bool) string {
	if hasTime {
		return t.Format(dateTimeLayout)
	}
	return t.Format(dateLayout)
}

// Fallback is the deterministic date used when a fragment cannot be parsed.
func (n *Normalizer) Fallback() time.Time {
	return n.anchor.TermStart.AddDate(0, 0, n.anchor.FallbackDays)
}

var duePrefixRE = regexp.MustCompile(`(?i)^\s*(?:(?:is\s+)?due|by|on|before|deadline)\b\s*(?:(?:on|by|at)\b)?\s*:?\s*`)

// Parse resolves fragment. ok is false when no strategy matched and the
// deterministic fallback was returned instead.
func (n *Normalizer) Parse(fragment string) (Result, bool) {
	s := strings.TrimSpace(fragment)
	if s == "" {
		return Result{Date: n.Fallback()}, false
	}

	if stripped := duePrefixRE.ReplaceAllString(s, ""); stripped != s && stripped != "" {
		return n.Parse(stripped)
	}

	if m, ok := n.Find(s); ok {
		return m.Result, true
	}

	if t, err := dateparse.ParseIn(s, time.Local); err == nil && plausibleYear(t.Year()) {
		hasTime := t.Hour() != 0 || t.Minute() != 0
		day := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.Local)
		return Result{Date: day, HasTime: hasTime}, true
	}

	return Result{Date: n.Fallback()}, false
}

// Normalize resolves fragment to a canonical date string. It never fails.
func (n *Normalizer) Normalize(fragment string) string {
	r, _ := n.Parse(fragment)
	return r.String()
}

func plausibleYear(y int) bool {
	return y >= 1990 && y <= 2100
}

// date builds a validated local date; ok is false for impossible dates
// such as 2/30 that time.Date would silently roll over.
func date(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func withClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, time.Local)
}
