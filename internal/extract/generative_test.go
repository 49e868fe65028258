package extract

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hurttlocker/syllabus/internal/event"
	"github.com/hurttlocker/syllabus/internal/llm"
)

// mockProvider replays canned responses and records the prompts it saw.
type mockProvider struct {
	name      string
	responses []string // one per call; the last one repeats
	err       error
	block     bool // wait for ctx cancellation instead of answering

	mu      sync.Mutex
	prompts []string
	opts    []llm.CompletionOpts
}

func (m *mockProvider) Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	n := len(m.prompts)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	if n > len(m.responses) {
		n = len(m.responses)
	}
	return m.responses[n-1], nil
}

func (m *mockProvider) Name() string {
	if m.name == "" {
		return "mock/test"
	}
	return m.name
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

const quizResponse = `{"events": [{"title": "Quiz 1", "date": "2025-02-03", "description": "", "eventType": "quiz", "confidence": 0.9}]}`

func TestGenerativeExtractor_DirectResponse(t *testing.T) {
	p := &mockProvider{responses: []string{quizResponse}}
	g := NewGenerativeExtractor(p, nil)

	events, err := g.Extract(context.Background(), "Quiz 1 on Feb 3", "cs101.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Title != "Quiz 1" || e.Date != "2025-02-03" || e.EventType != event.Quiz || e.Confidence != 0.9 || e.Description != "" {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.ID == "" {
		t.Error("expected an id to be assigned")
	}
	if p.opts[0].Format != "json" {
		t.Errorf("expected json format, got %q", p.opts[0].Format)
	}
	if p.opts[0].System == "" {
		t.Error("expected a system prompt")
	}
}

func TestGenerativeExtractor_Prompt(t *testing.T) {
	p := &mockProvider{responses: []string{`{"events": []}`}}
	g := NewGenerativeExtractor(p, nil)

	if _, err := g.Extract(context.Background(), "Midterm Exam: 10/15", "bio201.md"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	prompt := p.prompts[0]
	for _, want := range []string{
		"Midterm Exam: 10/15",
		"Document: bio201.md",
		"2025-2026 academic year",
		"2025-08-25",
		"officeHours",
		"YYYY-MM-DD",
		`"confidence"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerativeExtractor_TruncatedResponse(t *testing.T) {
	p := &mockProvider{responses: []string{`{"events": [{"title": "Quiz 1", "dat`}}
	g := NewGenerativeExtractor(p, nil)

	events, err := g.Extract(context.Background(), "Quiz 1 on Feb 3", "x")
	if err != nil {
		t.Fatalf("unparseable reply should not be an error, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected zero events, got %+v", events)
	}
}

func TestGenerativeExtractor_ProviderError(t *testing.T) {
	providerErr := errors.New("connection refused")
	p := &mockProvider{err: providerErr}
	g := NewGenerativeExtractor(p, nil)

	_, err := g.Extract(context.Background(), "Midterm Exam: 10/15", "x")
	if !errors.Is(err, providerErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "mock/test") {
		t.Errorf("error should name the provider: %v", err)
	}
}

func TestGenerativeExtractor_NilProvider(t *testing.T) {
	g := NewGenerativeExtractor(nil, nil)
	_, err := g.Extract(context.Background(), "Midterm Exam: 10/15", "x")
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerativeExtractor_Fallback(t *testing.T) {
	p := &mockProvider{err: errors.New("503")}
	g := NewGenerativeExtractor(p, nil, WithFallback(NewRuleExtractor(nil)))

	events, err := g.Extract(context.Background(), "Midterm Exam: 10/15", "x")
	if err != nil {
		t.Fatalf("fallback should swallow the error, got %v", err)
	}
	if len(events) != 1 || events[0].EventType != event.Exam {
		t.Errorf("expected rule result, got %+v", events)
	}
}

func TestGenerativeExtractor_Chunked(t *testing.T) {
	var sb strings.Builder
	for sb.Len() < 3000 {
		sb.WriteString("Lecture notes and reading for the week, see the course site.\n")
	}
	text := sb.String()

	p := &mockProvider{responses: []string{
		quizResponse,
		`{"events": [{"title": "Quiz 1", "date": "2025-02-03", "eventType": "quiz", "confidence": 0.8},
		             {"title": "Final Exam", "date": "2025-12-18", "eventType": "exam", "confidence": 0.9}]}`,
	}}
	g := NewGenerativeExtractor(p, nil, WithContextWindow(400))

	events, err := g.Extract(context.Background(), text, "long.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if p.calls() < 2 {
		t.Fatalf("expected several chunks, got %d calls", p.calls())
	}
	if !strings.Contains(p.prompts[0], "Part 1 of") {
		t.Error("chunk prompts should be numbered")
	}
	if len(events) != 2 {
		t.Fatalf("expected merged and deduplicated events, got %d: %+v", len(events), events)
	}
	if events[0].Confidence != 0.9 {
		t.Errorf("first occurrence should win, got confidence %.2f", events[0].Confidence)
	}
}

func TestChunkDocument(t *testing.T) {
	if got := ChunkDocument("", 1000); len(got) != 0 {
		t.Errorf("empty text: expected no chunks, got %d", len(got))
	}
	if got := ChunkDocument("short", 1000); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text: got %q", got)
	}

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("Week 3: Quiz on chapter ä and ö\n")
	}
	text := sb.String()
	chunks := ChunkDocument(text, 300)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !strings.Contains(text, c) {
			t.Errorf("chunk %d is not a substring of the input", i)
		}
		if !strings.HasSuffix(c, "\n") && i < len(chunks)-1 {
			t.Errorf("chunk %d should end at a line break: %q", i, c[len(c)-20:])
		}
		if len(c) > 300*3 {
			t.Errorf("chunk %d too long: %d bytes", i, len(c))
		}
	}
	if !strings.HasSuffix(text, chunks[len(chunks)-1]) {
		t.Error("last chunk should reach the end of the text")
	}
}
