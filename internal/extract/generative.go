package extract

import (
	"context"
	"fmt"

	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/event"
	"github.com/hurttlocker/syllabus/internal/llm"
	"github.com/hurttlocker/syllabus/internal/repair"
)

const (
	defaultMaxTokens   = 8192
	defaultTemperature = 0.1
)

// GenerativeExtractor asks a language model for events and repairs
// whatever comes back.
type GenerativeExtractor struct {
	provider      llm.Provider
	parser        *repair.Parser
	anchor        dates.Anchor
	contextWindow int
	maxTokens     int
	fallback      *RuleExtractor
}

// GenerativeOption configures a GenerativeExtractor.
type GenerativeOption func(*GenerativeExtractor)

// WithContextWindow sets the provider's context window in tokens.
func WithContextWindow(tokens int) GenerativeOption {
	return func(g *GenerativeExtractor) { g.contextWindow = tokens }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) GenerativeOption {
	return func(g *GenerativeExtractor) { g.maxTokens = n }
}

// WithParser replaces the default repair cascade.
func WithParser(p *repair.Parser) GenerativeOption {
	return func(g *GenerativeExtractor) { g.parser = p }
}

// WithFallback makes Extract return the rule extractor's result instead of
// an error when the provider cannot be reached. Used when the extractor
// runs outside an Orchestrator.
func WithFallback(r *RuleExtractor) GenerativeOption {
	return func(g *GenerativeExtractor) { g.fallback = r }
}

// NewGenerativeExtractor wraps provider. A nil normalizer uses the default
// academic anchor.
func NewGenerativeExtractor(provider llm.Provider, n *dates.Normalizer, opts ...GenerativeOption) *GenerativeExtractor {
	if n == nil {
		n = dates.New(dates.DefaultAnchor())
	}
	g := &GenerativeExtractor{
		provider:      provider,
		anchor:        n.Anchor(),
		contextWindow: DefaultContextWindow,
		maxTokens:     defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.parser == nil {
		g.parser = repair.NewParser(repair.NewValidator(n))
	}
	return g
}

// Name implements Extractor.
func (g *GenerativeExtractor) Name() string {
	if g.provider == nil {
		return "generative"
	}
	return g.provider.Name()
}

// Extract implements Extractor. A reply that cannot be repaired yields zero
// events and no error.
func (g *GenerativeExtractor) Extract(ctx context.Context, text, label string) ([]event.ExtractedEvent, error) {
	events, err := g.extract(ctx, Sanitize(text), label)
	if err != nil {
		if g.fallback != nil && ctx.Err() == nil {
			return g.fallback.ExtractText(text), nil
		}
		return nil, err
	}
	return events, nil
}

func (g *GenerativeExtractor) extract(ctx context.Context, text, label string) ([]event.ExtractedEvent, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("generative extractor: %w", llm.ErrNotConfigured)
	}

	chunks := ChunkDocument(text, g.contextWindow)
	var all []event.ExtractedEvent
	for i, chunk := range chunks {
		prompt := buildPrompt(chunk, label, g.anchor, i+1, len(chunks))
		resp, err := g.provider.Complete(ctx, prompt, llm.CompletionOpts{
			MaxTokens:   g.maxTokens,
			Temperature: defaultTemperature,
			Format:      "json",
			System:      systemPrompt,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: chunk %d/%d: %w", g.Name(), i+1, len(chunks), err)
		}
		all = append(all, g.parser.Parse(resp).Events...)
	}

	if len(chunks) > 1 {
		all = event.Dedup(all)
	}
	assignIDs(all)
	if all == nil {
		all = []event.ExtractedEvent{}
	}
	return all, nil
}
