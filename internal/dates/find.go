package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxRangeDays is the longest span FindRange accepts. Longer spans are
// usually "Weeks 3-9" style groupings rather than one event per day.
const MaxRangeDays = 7

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func monthNumber(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	m, ok := months[name[:3]]
	return int(m), ok
}

// Match is a date fragment located inside a longer line.
type Match struct {
	Result
	Kind  string // pattern name: iso, numeric_year, numeric, weekday_month, month_day, day_month, week
	Start int    // byte offsets of the fragment in the searched line
	End   int
	Text  string
}

// datePattern pairs a regexp with a builder that validates one submatch.
type datePattern struct {
	name  string
	re    *regexp.Regexp
	build func(n *Normalizer, s string, idx []int) (Result, bool)
}

var (
	isoRE          = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ](\d{1,2}):(\d{2})(?::\d{2}(?:\.\d+)?)?)?`)
	numericYearRE  = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})\b`)
	numericRE      = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
	weekdayMonthRE = regexp.MustCompile(`(?i)\b(?:mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?\s+` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	monthDayRE     = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayMonthRE     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthPattern + `\b(?:,?\s+(\d{4}))?`)
	weekRE         = regexp.MustCompile(`(?i)\bweek\s*#?\s*(\d{1,2})\b`)

	clock12RE = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\b\.?`)
	clock24RE = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

// patterns is the prioritized fragment list; the first pattern with a valid
// match wins even if a later pattern matches earlier in the line.
var patterns = []datePattern{
	{"iso", isoRE, buildISO},
	{"numeric_year", numericYearRE, buildNumericYear},
	{"numeric", numericRE, buildNumeric},
	{"weekday_month", weekdayMonthRE, buildMonthDay},
	{"month_day", monthDayRE, buildMonthDay},
	{"day_month", dayMonthRE, buildDayMonth},
	{"week", weekRE, buildWeek},
}

func group(s string, idx []int, g int) string {
	if 2*g+1 >= len(idx) || idx[2*g] < 0 {
		return ""
	}
	return s[idx[2*g]:idx[2*g+1]]
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func (n *Normalizer) year(s string) int {
	switch len(s) {
	case 0:
		return n.anchor.AcademicYear
	case 2:
		return 2000 + atoi(s)
	default:
		return atoi(s)
	}
}

func buildISO(_ *Normalizer, s string, idx []int) (Result, bool) {
	d, ok := date(atoi(group(s, idx, 1)), atoi(group(s, idx, 2)), atoi(group(s, idx, 3)))
	if !ok || !plausibleYear(d.Year()) {
		return Result{}, false
	}
	if h := group(s, idx, 4); h != "" {
		hour, minute := atoi(h), atoi(group(s, idx, 5))
		if hour < 24 && minute < 60 {
			return Result{Date: withClock(d, hour, minute), HasTime: true}, true
		}
	}
	return Result{Date: d}, true
}

func buildNumericYear(n *Normalizer, s string, idx []int) (Result, bool) {
	d, ok := date(n.year(group(s, idx, 3)), atoi(group(s, idx, 1)), atoi(group(s, idx, 2)))
	return Result{Date: d}, ok
}

func buildNumeric(n *Normalizer, s string, idx []int) (Result, bool) {
	d, ok := date(n.anchor.AcademicYear, atoi(group(s, idx, 1)), atoi(group(s, idx, 2)))
	return Result{Date: d}, ok
}

func buildMonthDay(n *Normalizer, s string, idx []int) (Result, bool) {
	m, ok := monthNumber(group(s, idx, 1))
	if !ok {
		return Result{}, false
	}
	d, ok := date(n.year(group(s, idx, 3)), m, atoi(group(s, idx, 2)))
	return Result{Date: d}, ok
}

func buildDayMonth(n *Normalizer, s string, idx []int) (Result, bool) {
	m, ok := monthNumber(group(s, idx, 2))
	if !ok {
		return Result{}, false
	}
	d, ok := date(n.year(group(s, idx, 3)), m, atoi(group(s, idx, 1)))
	return Result{Date: d}, ok
}

func buildWeek(n *Normalizer, s string, idx []int) (Result, bool) {
	w := atoi(group(s, idx, 1))
	if w < 1 || w > 52 {
		return Result{}, false
	}
	return Result{Date: n.termMonday.AddDate(0, 0, (w-1)*7)}, true
}

// Find locates the highest-priority date fragment in line. When the line
// also carries a clock time ("11:59 PM", "2pm", "14:00") it is attached.
func (n *Normalizer) Find(line string) (Match, bool) {
	for _, p := range patterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(line, -1) {
			r, ok := p.build(n, line, idx)
			if !ok {
				continue
			}
			m := Match{Result: r, Kind: p.name, Start: idx[0], End: idx[1], Text: line[idx[0]:idx[1]]}
			if !m.HasTime {
				if hour, minute, ok := findClock(line, idx[0], idx[1]); ok {
					m.Date = withClock(m.Date, hour, minute)
					m.HasTime = true
				}
			}
			return m, true
		}
	}
	return Match{}, false
}

// findClock finds a time of day outside the [skipStart, skipEnd) span.
func findClock(line string, skipStart, skipEnd int) (int, int, bool) {
	outside := func(idx []int) bool { return idx[1] <= skipStart || idx[0] >= skipEnd }

	for _, idx := range clock12RE.FindAllStringSubmatchIndex(line, -1) {
		if !outside(idx) {
			continue
		}
		hour := atoi(group(line, idx, 1))
		minute := atoi(group(line, idx, 2))
		if hour < 1 || hour > 12 || minute > 59 {
			continue
		}
		pm := strings.EqualFold(group(line, idx, 3), "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return hour, minute, true
	}
	for _, idx := range clock24RE.FindAllStringSubmatchIndex(line, -1) {
		if outside(idx) {
			return atoi(group(line, idx, 1)), atoi(group(line, idx, 2)), true
		}
	}
	return 0, 0, false
}

// Range is a short span of consecutive days found in a line.
type Range struct {
	Start time.Time
	End   time.Time
	From  int // byte offsets of the fragment in the searched line
	To    int
	Text  string
}

// Days returns the inclusive number of days in the range.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24+0.5) + 1
}

var (
	monthRangeRE   = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?\s*(?:-|–|—|to|through|thru)\s*(?:` + monthPattern + `\.?\s+)?(\d{1,2})(?:st|nd|rd|th)?\b`)
	numericRangeRE = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\s*(?:-|–|—|to)\s*(\d{1,2})/(\d{1,2})\b`)
)

// FindRange locates a "March 5-9" or "3/5-3/9" span in line. Ranges must be
// increasing and at most MaxRangeDays long.
func (n *Normalizer) FindRange(line string) (Range, bool) {
	for _, idx := range monthRangeRE.FindAllStringSubmatchIndex(line, -1) {
		m1, ok := monthNumber(group(line, idx, 1))
		if !ok {
			continue
		}
		m2 := m1
		if name := group(line, idx, 3); name != "" {
			if m2, ok = monthNumber(name); !ok {
				continue
			}
		}
		if r, ok := n.makeRange(m1, atoi(group(line, idx, 2)), m2, atoi(group(line, idx, 4))); ok {
			r.From, r.To, r.Text = idx[0], idx[1], line[idx[0]:idx[1]]
			return r, true
		}
	}
	for _, idx := range numericRangeRE.FindAllStringSubmatchIndex(line, -1) {
		r, ok := n.makeRange(atoi(group(line, idx, 1)), atoi(group(line, idx, 2)), atoi(group(line, idx, 3)), atoi(group(line, idx, 4)))
		if ok {
			r.From, r.To, r.Text = idx[0], idx[1], line[idx[0]:idx[1]]
			return r, true
		}
	}
	return Range{}, false
}

func (n *Normalizer) makeRange(m1, d1, m2, d2 int) (Range, bool) {
	year := n.anchor.AcademicYear
	start, ok := date(year, m1, d1)
	if !ok {
		return Range{}, false
	}
	end, ok := date(year, m2, d2)
	if !ok {
		return Range{}, false
	}
	r := Range{Start: start, End: end}
	if !end.After(start) || r.Days() > MaxRangeDays {
		return Range{}, false
	}
	return r, true
}

// ExpandRange returns one date per day of r, inclusive.
func ExpandRange(r Range) []time.Time {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: r.Start,
		Until:   r.End,
	})
	if err != nil {
		return []time.Time{r.Start}
	}
	days := rule.All()
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local))
	}
	return out
}
