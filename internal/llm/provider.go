// Package llm provides the text-generation providers the generative
// extractor prompts: Google Gemini, OpenRouter and a local Ollama server.
// Providers talk plain REST over net/http and make exactly one request per
// Complete call; retries and fallbacks belong to the caller.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrNotConfigured is wrapped by NewProvider when a provider lacks the
// credentials it needs. Callers treat it as "skip this provider".
var ErrNotConfigured = errors.New("llm provider not configured")

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 2 * time.Minute

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "google/gemini-2.5-flash").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // Max tokens to generate (0 = provider default)
	Temperature float64 // 0.0-2.0 (0 = deterministic)
	Model       string  // Override model for this request (empty = use provider default)
	Format      string  // "json" for structured output, empty for plain text
	System      string  // System prompt (optional)
}

// Config holds provider configuration.
type Config struct {
	Provider string        // "google", "openrouter", "ollama"
	Model    string        // e.g., "gemini-2.5-flash", "llama3.1"
	APIKey   string        // API key (empty = read from env)
	BaseURL  string        // Optional URL override
	Timeout  time.Duration // Per-request timeout (0 = DefaultTimeout)
}

// StatusError is returned when a provider answers with a non-200 status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Providers lists the supported provider names.
var Providers = []string{"google", "openrouter", "ollama"}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch strings.ToLower(cfg.Provider) {
	case "google", "gemini":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("%w: google provider requires GEMINI_API_KEY or GOOGLE_API_KEY", ErrNotConfigured)
		}
		p := &googleProvider{
			apiKey:  key,
			model:   firstNonEmpty(cfg.Model, "gemini-2.5-flash"),
			baseURL: firstNonEmpty(cfg.BaseURL, "https://generativelanguage.googleapis.com/v1beta"),
		}
		p.client.Timeout = timeout
		return p, nil

	case "openrouter":
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENROUTER_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("%w: openrouter provider requires OPENROUTER_API_KEY", ErrNotConfigured)
		}
		p := &chatProvider{
			name:    "openrouter",
			apiKey:  key,
			model:   firstNonEmpty(cfg.Model, "openai/gpt-4o-mini"),
			baseURL: firstNonEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
			headers: map[string]string{
				"HTTP-Referer": "https://github.com/hurttlocker/syllabus",
				"X-Title":      "Syllabus",
			},
		}
		p.client.Timeout = timeout
		return p, nil

	case "ollama":
		p := &chatProvider{
			name:    "ollama",
			apiKey:  cfg.APIKey,
			model:   firstNonEmpty(cfg.Model, "llama3.1"),
			baseURL: firstNonEmpty(cfg.BaseURL, os.Getenv("OLLAMA_BASE_URL"), "http://localhost:11434/v1"),
		}
		p.client.Timeout = timeout
		return p, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: %s)", cfg.Provider, strings.Join(Providers, ", "))
	}
}

// ParseSpec parses a "provider/model" spec into a Config.
// Format: "google/gemini-2.5-flash", "openrouter/openai/gpt-4o-mini", "ollama/llama3.1".
// A bare provider name selects its default model.
func ParseSpec(spec string) (Config, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Config{Provider: "google", Model: "gemini-2.5-flash"}, nil
	}

	parts := strings.SplitN(spec, "/", 2)
	provider := strings.ToLower(parts[0])
	model := ""
	if len(parts) == 2 {
		model = parts[1]
	}

	switch provider {
	case "google", "openrouter", "ollama":
		return Config{Provider: provider, Model: model}, nil
	default:
		return Config{}, fmt.Errorf("unknown provider %q in %q (supported: %s)", provider, spec, strings.Join(Providers, ", "))
	}
}

// ParseSpecs parses a comma-separated priority list of specs.
func ParseSpecs(list string) ([]Config, error) {
	var out []Config
	for _, s := range strings.Split(list, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		cfg, err := ParseSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
