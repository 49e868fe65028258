// Package repair turns near-JSON produced by a generative model into events.
//
// The pipeline is layered: a direct parse for well-formed input, a table of
// named textual repair rules, structural balancing of truncated output, and
// finally an ordered chain of partial-recovery strategies. Every event that
// survives any layer goes through the same Validator.
package repair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Rule is one named point-fix. Either Pattern/Replacement or Fix is set.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	Fix         func(string) string
}

// Apply runs the rule over s.
func (r Rule) Apply(s string) string {
	if r.Fix != nil {
		return r.Fix(s)
	}
	if r.Pattern == nil {
		return s
	}
	return r.Pattern.ReplaceAllString(s, r.Replacement)
}

var truncatedKeys = map[string]string{
	"titl":       "title",
	"tit":        "title",
	"dat":        "date",
	"descriptio": "description",
	"descriptn":  "description",
	"descripti":  "description",
	"descrip":    "description",
	"desc":       "description",
	"eventTyp":   "eventType",
	"eventTy":    "eventType",
	"eventT":     "eventType",
	"confidenc":  "confidence",
	"confiden":   "confidence",
	"confid":     "confidence",
	"conf":       "confidence",
	"locatio":    "location",
	"loc":        "location",
}

var (
	truncatedKeyRE = regexp.MustCompile(`"([A-Za-z]+)"(\s*):`)
	nestedValueRE  = regexp.MustCompile(`"(title|description|location|date)"\s*:\s*\{\s*"([^"{}]*)"\s*:\s*"?([^"{}]*?)"?\s*\}`)
	splitValueRE   = regexp.MustCompile(`("[A-Za-z_]+"\s*:\s*"[^"]*)"\s*:\s*"([^"]*")`)
	textKeyRE      = regexp.MustCompile(`"(?:title|description|location)"\s*:\s*"`)
	valueEndRE     = regexp.MustCompile(`^\s*(?:,\s*"[A-Za-z_]+"\s*:|[}\]]|$)`)
	lastDigitRE    = regexp.MustCompile(`\d\s*$`)
	firstDigitRE   = regexp.MustCompile(`^\s*\d`)
	whitespaceRE   = regexp.MustCompile(`\s+`)
	openFenceRE    = regexp.MustCompile("(?i)```[a-z]*\\s*")
	closeFenceRE   = regexp.MustCompile("\\s*```")
)

// joinSplit rejoins a value a model broke at its colon. Digit-colon-digit
// ("11":"59 PM") was a clock time; anything else ("Room":"203") a label.
func joinSplit(left, right string) string {
	if lastDigitRE.MatchString(left) && firstDigitRE.MatchString(right) {
		return strings.TrimSpace(left) + ":" + strings.TrimSpace(right)
	}
	return strings.TrimSpace(left) + " " + strings.TrimSpace(right)
}

// DefaultRules is the ordered repair table used by Repair.
var DefaultRules = []Rule{
	{
		Name: "truncated_keys",
		Fix: func(s string) string {
			return truncatedKeyRE.ReplaceAllStringFunc(s, func(m string) string {
				sub := truncatedKeyRE.FindStringSubmatch(m)
				if full, ok := truncatedKeys[sub[1]]; ok {
					return `"` + full + `"` + sub[2] + ":"
				}
				return m
			})
		},
	},
	{
		Name:        "quoted_confidence",
		Pattern:     regexp.MustCompile(`"confidence"\s*:\s*"\s*(-?\d*\.?\d+)\s*"`),
		Replacement: `"confidence": ${1}`,
	},
	{
		Name:        "quoted_booleans",
		Pattern:     regexp.MustCompile(`"(approved|allDay)"\s*:\s*"(true|false)"`),
		Replacement: `"${1}": ${2}`,
	},
	{
		Name: "nested_colon_values",
		Fix: func(s string) string {
			return nestedValueRE.ReplaceAllStringFunc(s, func(m string) string {
				sub := nestedValueRE.FindStringSubmatch(m)
				return `"` + sub[1] + `": "` + joinSplit(sub[2], sub[3]) + `"`
			})
		},
	},
	{
		Name: "split_colon_values",
		Fix: func(s string) string {
			return splitValueRE.ReplaceAllStringFunc(s, func(m string) string {
				sub := splitValueRE.FindStringSubmatch(m)
				head := sub[1]
				idx := strings.LastIndex(head, `"`)
				return head[:idx+1] + joinSplit(head[idx+1:], strings.TrimSuffix(sub[2], `"`)) + `"`
			})
		},
	},
	{
		Name:        "missing_comma_objects",
		Pattern:     regexp.MustCompile(`\}\s*\{`),
		Replacement: "}, {",
	},
	{
		Name:        "missing_comma_properties",
		Pattern:     regexp.MustCompile(`("|\d|true|false|null)\s+("[A-Za-z_]+"\s*:)`),
		Replacement: "${1}, ${2}",
	},
	{
		Name: "unescaped_inner_quotes",
		Fix:  escapeInnerQuotes,
	},
	{
		Name:        "trailing_commas",
		Pattern:     regexp.MustCompile(`,\s*([\]}])`),
		Replacement: "${1}",
	},
}

// escapeInnerQuotes escapes stray quotes inside free-text values such as
// "title": "Read "Hamlet" act 1". A value ends at the first unescaped quote
// followed by another key, a closer or the end of input.
func escapeInnerQuotes(s string) string {
	locs := textKeyRE.FindAllStringIndex(s, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		start := locs[i][1]
		end := -1
		escaped := false
		for j := start; j < len(s); j++ {
			switch {
			case escaped:
				escaped = false
			case s[j] == '\\':
				escaped = true
			case s[j] == '"' && valueEndRE.MatchString(s[j+1:]):
				end = j
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			continue
		}
		var b strings.Builder
		escaped = false
		for j := start; j < end; j++ {
			c := s[j]
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
		s = s[:start] + b.String() + s[end:]
	}
	return s
}

// TrimToObject cuts s to the span between the first '{' and the last '}'.
// Truncated output with no closing brace keeps everything after the '{'.
// A bare array is trimmed the same way on '[' and ']'.
func TrimToObject(s string) string {
	closer := byte('}')
	start := strings.IndexByte(s, '{')
	if arr := strings.IndexByte(s, '['); arr >= 0 && (start < 0 || arr < start) && !strings.Contains(s[:arr], `"`) {
		closer, start = ']', arr
	}
	if start < 0 {
		return s
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// StripFences removes markdown code fence markers.
func StripFences(s string) string {
	s = openFenceRE.ReplaceAllString(s, "")
	return closeFenceRE.ReplaceAllString(s, "")
}

// Repair applies the textual repair steps to raw: trim to the outer object,
// strip fences, collapse whitespace and run rules in order. Input that is
// already valid JSON is returned trimmed and otherwise untouched.
func Repair(raw string) string {
	return RepairWith(raw, DefaultRules)
}

// RepairWith is Repair with a custom rule table.
func RepairWith(raw string, rules []Rule) string {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) {
		return s
	}
	s = TrimToObject(s)
	s = StripFences(s)
	s = strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
	for _, r := range rules {
		s = r.Apply(s)
	}
	return s
}
