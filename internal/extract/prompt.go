package extract

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/event"
)

const systemPrompt = `You extract academic calendar events from course syllabi.
Respond with JSON only. No prose, no markdown fences.`

// buildPrompt renders the extraction prompt for one chunk of a document.
func buildPrompt(text, label string, anchor dates.Anchor, part, parts int) string {
	types := make([]string, len(event.Types))
	for i, t := range event.Types {
		types[i] = string(t)
	}

	var sb strings.Builder
	sb.WriteString("Find every dated event in the syllabus below: lectures, assignments, quizzes, exams, project deadlines, office hours, holidays and breaks.\n\n")
	sb.WriteString("Return an object of this exact shape:\n")
	sb.WriteString(`{"events": [{"title": "...", "date": "YYYY-MM-DD", "endDate": "YYYY-MM-DD or omit", "description": "...", "location": "...", "eventType": "...", "confidence": 0.0}]}`)
	sb.WriteString("\n\nRules:\n")
	fmt.Fprintf(&sb, "- eventType is one of: %s.\n", strings.Join(types, ", "))
	sb.WriteString("- Use YYYY-MM-DDTHH:MM:SS when a time of day is given.\n")
	fmt.Fprintf(&sb, "- Dates without a year belong to the %d-%d academic year. Week 1 starts %s.\n",
		anchor.AcademicYear, anchor.AcademicYear+1, dates.Format(anchor.TermStart, false))
	sb.WriteString("- confidence is a number between 0 and 1.\n")
	sb.WriteString("- Titles are short (under 80 characters). Never repeat an event.\n")
	sb.WriteString("- If there are no dated events, return {\"events\": []}.\n\n")

	if label != "" {
		fmt.Fprintf(&sb, "Document: %s\n", label)
	}
	if parts > 1 {
		fmt.Fprintf(&sb, "Part %d of %d.\n", part, parts)
	}
	sb.WriteString("\nSyllabus:\n")
	sb.WriteString(text)
	return sb.String()
}
