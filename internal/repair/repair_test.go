package repair

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/hurttlocker/syllabus/internal/event"
)

func ruleByName(t *testing.T, name string) Rule {
	t.Helper()
	for _, r := range DefaultRules {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no rule named %q", name)
	return Rule{}
}

func TestRules(t *testing.T) {
	tests := []struct {
		rule string
		in   string
		want string
	}{
		{
			"truncated_keys",
			`{"titl": "Quiz", "dat": "2025-02-03", "confidenc": 0.9}`,
			`{"title": "Quiz", "date": "2025-02-03", "confidence": 0.9}`,
		},
		{
			"truncated_keys",
			`{"title": "Room", "Room": "203"}`,
			`{"title": "Room", "Room": "203"}`,
		},
		{
			"quoted_confidence",
			`{"confidence": "0.85"}`,
			`{"confidence": 0.85}`,
		},
		{
			"quoted_booleans",
			`{"approved": "false"}`,
			`{"approved": false}`,
		},
		{
			"nested_colon_values",
			`{"location": {"Room": "203"}}`,
			`{"location": "Room 203"}`,
		},
		{
			"nested_colon_values",
			`{"description": {"Due at 11": "59 PM"}}`,
			`{"description": "Due at 11:59 PM"}`,
		},
		{
			"split_colon_values",
			`{"description": "Due at 11": "59 PM", "eventType": "homework"}`,
			`{"description": "Due at 11:59 PM", "eventType": "homework"}`,
		},
		{
			"split_colon_values",
			`{"title": "CS": "301 Midterm"}`,
			`{"title": "CS 301 Midterm"}`,
		},
		{
			"missing_comma_objects",
			`[{"a": 1} {"b": 2}{"c": 3}]`,
			`[{"a": 1}, {"b": 2}, {"c": 3}]`,
		},
		{
			"missing_comma_properties",
			`{"title": "Quiz 1" "date": "2025-02-03", "confidence": 0.9 "eventType": "quiz"}`,
			`{"title": "Quiz 1", "date": "2025-02-03", "confidence": 0.9, "eventType": "quiz"}`,
		},
		{
			"unescaped_inner_quotes",
			`{"title": "Read "Hamlet" act 1", "date": "2025-03-01"}`,
			`{"title": "Read \"Hamlet\" act 1", "date": "2025-03-01"}`,
		},
		{
			"unescaped_inner_quotes",
			`{"title": "Already \"fine\"", "date": "2025-03-01"}`,
			`{"title": "Already \"fine\"", "date": "2025-03-01"}`,
		},
		{
			"trailing_commas",
			`{"events": [{"title": "a",},]}`,
			`{"events": [{"title": "a"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			if got := ruleByName(t, tt.rule).Apply(tt.in); got != tt.want {
				t.Errorf("\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestRules_Idempotent(t *testing.T) {
	inputs := []string{
		`{"titl": "Quiz" "dat": "2025-02-03", "confidence": "0.9",}`,
		`{"description": "Due at 11": "59 PM"} {"title": "Read "Hamlet""}`,
	}
	for _, in := range inputs {
		for _, r := range DefaultRules {
			once := r.Apply(in)
			if twice := r.Apply(once); twice != once {
				t.Errorf("rule %s not idempotent on %s:\n once: %s\ntwice: %s", r.Name, in, once, twice)
			}
		}
	}
}

func TestRepair_NoOpOnValidJSON(t *testing.T) {
	docs := []string{
		`{"events": [{"title": "Quiz 1", "date": "2025-02-03", "description": "", "eventType": "quiz", "confidence": 0.9}]}`,
		"  {\n  \"events\": [\n    {\"title\": \"Lab:  setup\", \"date\": \"2025-01-05\", \"confidence\": 1},\n    {\"title\": \"Read \\\"Hamlet\\\"\", \"date\": \"2025-01-06\"}\n  ]\n}\n",
		`[{"title": "Essay, draft", "date": "2025-04-01", "eventType": "homework"}]`,
		`{"events": []}`,
	}
	for _, raw := range docs {
		repaired := Repair(raw)
		if repaired != strings.TrimSpace(raw) {
			t.Errorf("Repair changed valid input:\n  in: %s\n out: %s", raw, repaired)
		}

		var direct, viaRepair any
		if err := json.Unmarshal([]byte(raw), &direct); err != nil {
			t.Fatalf("test doc is invalid: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &viaRepair); err != nil {
			t.Fatalf("repaired doc is invalid: %v", err)
		}
		if !reflect.DeepEqual(direct, viaRepair) {
			t.Errorf("repaired value differs from direct parse for %s", raw)
		}

		if got := NewParser(nil).Parse(raw).Method; got != MethodDirect {
			t.Errorf("method = %q, want direct", got)
		}
	}
}

func TestRepair_FencesPreambleAndQuotedConfidence(t *testing.T) {
	raw := "Sure! Here are the events:\n```json\n{\"events\": [\n" +
		"  {\"title\": \"Midterm\", \"date\": \"2025-10-15\", \"eventType\": \"exam\", \"confidence\": \"0.9\"},\n" +
		"  {\"title\": \"HW 1\", \"date\": \"2025-09-30\", \"eventType\": \"homework\", \"confidence\": 0.8,}\n" +
		"]}\n```\nLet me know if you need anything else!"

	if !json.Valid([]byte(Repair(raw))) {
		t.Fatalf("repair did not produce valid JSON: %s", Repair(raw))
	}
	res := NewParser(nil).Parse(raw)
	if res.Method != MethodRepaired {
		t.Errorf("method = %q, want repaired", res.Method)
	}
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	if res.Events[0].Confidence != 0.9 || res.Events[0].EventType != event.Exam {
		t.Errorf("first event = %+v", res.Events[0])
	}
}

func TestParse_WellFormedResponse(t *testing.T) {
	raw := `{"events": [{"title": "Quiz 1", "date": "2025-02-03", "description": "", "eventType": "quiz", "confidence": 0.9}]}`
	res := NewParser(nil).Parse(raw)
	want := []event.ExtractedEvent{{
		Title:      "Quiz 1",
		Date:       "2025-02-03",
		EventType:  event.Quiz,
		Confidence: 0.9,
	}}
	if res.Method != MethodDirect {
		t.Errorf("method = %q, want direct", res.Method)
	}
	if !reflect.DeepEqual(res.Events, want) {
		t.Errorf("events = %+v, want %+v", res.Events, want)
	}
}

func TestParse_TruncatedMidFieldYieldsNothing(t *testing.T) {
	res := NewParser(nil).Parse(`{"events": [{"title": "Quiz 1", "dat`)
	if len(res.Events) != 0 {
		t.Errorf("expected no events, got %+v", res.Events)
	}
	if res.Method != MethodNone {
		t.Errorf("method = %q, want none", res.Method)
	}
}

func TestParse_TruncatedValueIsBalanced(t *testing.T) {
	raw := `{"events": [{"title": "Quiz 1", "date": "2025-02-03", "eventType": "quiz"}, {"title": "Quiz 2", "date": "2025-02-10", "descr`
	res := NewParser(nil).Parse(raw)
	if res.Method != MethodBalanced && !res.Recovered() {
		t.Errorf("method = %q", res.Method)
	}
	if len(res.Events) == 0 || res.Events[0].Title != "Quiz 1" {
		t.Errorf("events = %+v", res.Events)
	}
}

func TestParse_RecoversFlatObjects(t *testing.T) {
	raw := `{"events": [{"title": "Quiz 1", "date": "2025-02-03", "eventType": "quiz"}, garbage here, {"title": "Exam 1", "date": "2025-03-10", "eventType": "exam"}]}`
	res := NewParser(nil).Parse(raw)
	if res.Method != "recovered:flat_objects" {
		t.Errorf("method = %q", res.Method)
	}
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	if res.Events[1].EventType != event.Exam {
		t.Errorf("second event type = %q", res.Events[1].EventType)
	}
}

func TestParse_RecoversTitleDatePairs(t *testing.T) {
	raw := `{"events": [{"title": "Final Exam", "date": "2025-12-18", "eventType": exam}]}`
	res := NewParser(nil).Parse(raw)
	if res.Method != "recovered:title_date_pairs" {
		t.Fatalf("method = %q", res.Method)
	}
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}
	e := res.Events[0]
	if e.Title != "Final Exam" || e.Date != "2025-12-18" || e.EventType != event.Exam {
		t.Errorf("event = %+v", e)
	}
	if e.Confidence != RecoveredConfidence {
		t.Errorf("confidence = %v, want %v", e.Confidence, RecoveredConfidence)
	}
}

func TestParse_EmptyAndGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "I could not find any events.", "\x00\xff\xfe", "{{{{", "]]]"} {
		res := NewParser(nil).Parse(raw)
		if len(res.Events) != 0 {
			t.Errorf("Parse(%q) = %+v, want none", raw, res.Events)
		}
	}
}

func TestRecoverEventsFragments(t *testing.T) {
	s := `{"events": [{"title": "A", "date": "2025-01-01"}, {"title": "B", "date": "2025-01-02"`
	got := recoverEventsFragments(s)
	if len(got) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %+v", len(got), got)
	}
	if got[1].Title != "B" {
		t.Errorf("second title = %q", got[1].Title)
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"events": [{"title": "Quiz 1", "date": "2025-02-03"`, `{"events": [{"title": "Quiz 1", "date": "2025-02-03"}]}`},
		{`{"events": [{"title": "Quiz 1", "date": "2025-02`, `{"events": [{"title": "Quiz 1", "date": "2025-02"}]}`},
		{`{"a": [1, 2,`, `{"a": [1, 2]}`},
		{`{"title": "x", "date":`, `{"title": "x", "date": null}`},
		{`{"a": "}"}`, `{"a": "}"}`},
		{``, ``},
	}
	for _, tt := range tests {
		if got := Balance(tt.in); got != tt.want {
			t.Errorf("Balance(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTrimToObject(t *testing.T) {
	tests := map[string]string{
		`Here you go: {"events": []} hope that helps`: `{"events": []}`,
		`{"events": [{"title": "x"`:                   `{"events": [{"title": "x"`,
		`Result: [{"title": "x"}] done`:               `[{"title": "x"}]`,
		`no json here`:                                `no json here`,
	}
	for in, want := range tests {
		if got := TrimToObject(in); got != want {
			t.Errorf("TrimToObject(%q) = %q, want %q", in, got, want)
		}
	}
}
