// Package classify turns a syllabus line into a cleaned event title and an
// event type using ordered keyword families. The first family that matches
// wins, so family order encodes precedence ("Final Exam" is an exam, "no
// class" is not a lecture).
package classify

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hurttlocker/syllabus/internal/event"
)

const (
	// MaxTitleLength caps cleaned titles.
	MaxTitleLength = 80
	// MinTitleLength is the shortest cleaned title kept before a generic
	// title is synthesized instead.
	MinTitleLength = 3

	// OtherConfidence is assigned when no family matches.
	OtherConfidence = 0.55
)

// Result is the classification of one line.
type Result struct {
	Title      string
	Type       event.EventType
	Confidence float64
	Keyword    string // lowercased keyword that selected the family, empty for other
}

type family struct {
	name       string
	typ        event.EventType
	confidence float64
	re         *regexp.Regexp
}

var (
	breakRE       = regexp.MustCompile(`(?i)\b(no\s+(?:class(?:es)?|lectures?|school)|holiday|(?:spring|fall|winter|thanksgiving|reading|mid-?semester|mid-?term)\s+break|recess|cancell?ed)\b`)
	examRE        = regexp.MustCompile(`(?i)\b(final\s+exam(?:ination)?|midterms?|exams?|examination|tests?|finals?|assessments?)\b`)
	quizRE        = regexp.MustCompile(`(?i)\b(quiz(?:zes)?)\b`)
	homeworkRE    = regexp.MustCompile(`(?i)\b(assignments?|homework|hw\s*#?\d*|problem\s+sets?|psets?|due|submit\w*|deadline)\b`)
	projectRE     = regexp.MustCompile(`(?i)\b(projects?|presentations?|papers?|proposals?|reports?)\b`)
	officeHoursRE = regexp.MustCompile(`(?i)\b(office\s+hours?)\b`)
	lectureRE     = regexp.MustCompile(`(?i)\b(lectures?|class(?:es)?|sessions?|seminars?|discussions?)\b`)

	families = []family{
		{"break", event.Other, 0.6, breakRE},
		{"exam", event.Exam, 0.9, examRE},
		{"quiz", event.Quiz, 0.85, quizRE},
		{"homework", event.Homework, 0.85, homeworkRE},
		{"project", event.Project, 0.8, projectRE},
		{"officeHours", event.OfficeHours, 0.75, officeHoursRE},
		{"lecture", event.Lecture, 0.7, lectureRE},
	}
)

// match returns the first family that matches text and the keyword it
// matched. A bare "final" yields to the project family so that "Final
// Project" and "Final Paper" are projects.
func match(text string) (family, string, bool) {
	for _, f := range families {
		kw := f.re.FindString(text)
		if kw == "" {
			continue
		}
		kw = strings.ToLower(strings.Join(strings.Fields(kw), " "))
		if f.typ == event.Exam && strings.HasPrefix(kw, "final") && !strings.Contains(kw, "exam") {
			if projectRE.MatchString(text) && len(examRE.FindAllString(text, -1)) == 1 {
				continue
			}
		}
		return f, kw, true
	}
	return family{}, "", false
}

// Classify produces a title, type and confidence for line.
func Classify(line string) Result {
	r := Result{Type: event.Other, Confidence: OtherConfidence}
	if f, kw, ok := match(line); ok {
		r.Type, r.Confidence, r.Keyword = f.typ, f.confidence, kw
	}
	r.Title = CleanTitle(line)
	if utf8.RuneCountInString(r.Title) < MinTitleLength {
		r.Title = GenericTitle(r.Keyword, r.Type)
	}
	return r
}

// InferType returns the event type of the first keyword family found in
// text, or other.
func InferType(text string) event.EventType {
	if f, _, ok := match(text); ok {
		return f.typ
	}
	return event.Other
}

var (
	spaceRE      = regexp.MustCompile(`\s+`)
	listMarkerRE = regexp.MustCompile(`^(?:[-*•·●▪◦>–—]+|\(?\d{1,3}[.)]|\(?[a-zA-Z][.)])\s+`)
	weekPrefixRE = regexp.MustCompile(`(?i)^(?:week|wk)\.?\s*#?\s*\d{1,2}\s*[:\-–—|.]\s*`)
	separators   = []string{" - ", ": ", " – ", " | "}
)

const edgePunct = " \t-–—:|,;*•·"

// CleanTitle strips list markers and "Week N:" prefixes, truncates at the
// first mid-string separator, capitalizes and caps the result.
func CleanTitle(raw string) string {
	s := strings.TrimSpace(spaceRE.ReplaceAllString(raw, " "))
	s = strings.Trim(s, edgePunct)

	for i := 0; i < 3; i++ {
		next := listMarkerRE.ReplaceAllString(s, "")
		next = weekPrefixRE.ReplaceAllString(next, "")
		next = strings.Trim(next, edgePunct)
		if next == s {
			break
		}
		s = next
	}

	cut := -1
	for _, sep := range separators {
		idx := strings.Index(s, sep)
		if idx >= 5 && idx <= 60 && (cut < 0 || idx < cut) {
			cut = idx
		}
	}
	if cut > 0 {
		s = s[:cut]
	}
	s = strings.Trim(s, edgePunct)

	s = capitalize(s)
	return event.Truncate(s, MaxTitleLength)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

var keywordTitles = map[string]string{
	"midterm":      "Midterm Exam",
	"midterms":     "Midterm Exam",
	"final":        "Final Exam",
	"finals":       "Final Exam",
	"final exam":   "Final Exam",
	"exam":         "Exam",
	"exams":        "Exam",
	"test":         "Test",
	"tests":        "Test",
	"assessment":   "Assessment",
	"quiz":         "Quiz",
	"quizzes":      "Quiz",
	"homework":     "Homework Due",
	"assignment":   "Assignment Due",
	"assignments":  "Assignment Due",
	"problem set":  "Problem Set Due",
	"pset":         "Problem Set Due",
	"due":          "Assignment Due",
	"deadline":     "Deadline",
	"project":      "Project",
	"presentation": "Presentation",
	"paper":        "Paper Due",
	"proposal":     "Proposal Due",
	"report":       "Report Due",
	"office hours": "Office Hours",
	"lecture":      "Lecture",
	"class":        "Class",
	"session":      "Session",
	"seminar":      "Seminar",
	"discussion":   "Discussion",
	"no class":     "No Class",
	"holiday":      "Holiday",
	"recess":       "Recess",
}

var typeTitles = map[event.EventType]string{
	event.Lecture:     "Lecture",
	event.Homework:    "Assignment Due",
	event.Exam:        "Exam",
	event.Quiz:        "Quiz",
	event.Project:     "Project",
	event.OfficeHours: "Office Hours",
}

// GenericTitle synthesizes a title from the matched keyword, falling back to
// the event type and finally "Academic Event".
func GenericTitle(keyword string, typ event.EventType) string {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if t, ok := keywordTitles[kw]; ok {
		return t
	}
	switch {
	case strings.HasPrefix(kw, "hw"):
		return "Homework Due"
	case strings.HasPrefix(kw, "submit"):
		return "Submission Due"
	case strings.HasSuffix(kw, " break"):
		return capitalize(kw)
	case strings.HasPrefix(kw, "cancel"):
		return "Class Cancelled"
	}
	if t, ok := typeTitles[typ]; ok {
		return t
	}
	return "Academic Event"
}

var courseRE = regexp.MustCompile(`(?i)\b([a-z]{2,5})[\s_-]?(\d{3,4}[a-z]?)`)

// CourseFromLabel pulls a course code out of a document label, e.g.
// "CS301_syllabus.pdf" gives "CS301". It returns "" when none is present.
func CourseFromLabel(label string) string {
	base := strings.TrimSuffix(filepath.Base(label), filepath.Ext(label))
	m := courseRE.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1] + m[2])
}

var dueRE = regexp.MustCompile(`(?i)\b(due|deadline|submit\w*|turn(?:ed)?\s+in|hand\s+in)\b`)

// HasDueLanguage reports whether line states an explicit deadline.
func HasDueLanguage(line string) bool {
	return dueRE.MatchString(line)
}
