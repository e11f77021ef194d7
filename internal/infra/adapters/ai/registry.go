// File: internal/infra/adapters/ai/registry.go
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"ai-agent-backend/internal/config"
	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/ports/adapter"
)

const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

var _ adapter.ProviderRegistry = (*Registry)(nil)

// Registry resolves provider/model pairs to generators. Provider names are
// case-insensitive and "anthropic" is an alias of "claude". A provider with
// no credential resolves to a PlaceholderGenerator.
type Registry struct {
	cfg       config.AIConfig
	openai    *openai.Client
	gemini    *genai.Client
	http      *http.Client
	sem       chan struct{}
	catalogue map[string][]string
	logger    *zerolog.Logger
}

func NewRegistry(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (*Registry, error) {
	l := logger.With().Str("component", "ai-registry").Logger()
	r := &Registry{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		catalogue: copyCatalogue(cfg.Models),
		logger:    &l,
	}
	if cfg.ConcurrentLimit > 0 {
		r.sem = make(chan struct{}, cfg.ConcurrentLimit)
	}

	if cfg.OpenAIKey != "" {
		c, err := NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		r.openai = &c
	}
	if cfg.GeminiKey != "" {
		c, err := NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiURL)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		r.gemini = c
	}

	for _, p := range []string{ProviderOpenAI, ProviderClaude, ProviderGemini} {
		if !r.hasCredential(p) {
			l.Warn().Str("provider", p).Msg("no credential configured; using placeholder backend")
		}
	}
	return r, nil
}

// NormalizeProvider lowercases p and folds aliases. ok is false for
// unsupported providers.
func NormalizeProvider(p string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "openai":
		return ProviderOpenAI, true
	case "claude", "anthropic":
		return ProviderClaude, true
	case "gemini", "google":
		return ProviderGemini, true
	default:
		return "", false
	}
}

func (r *Registry) hasCredential(provider string) bool {
	switch provider {
	case ProviderOpenAI:
		return r.openai != nil
	case ProviderClaude:
		return r.cfg.AnthropicKey != ""
	case ProviderGemini:
		return r.gemini != nil
	}
	return false
}

func (r *Registry) Resolve(provider, model string) (adapter.TextGenerator, error) {
	p, ok := NormalizeProvider(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}

	var gen adapter.TextGenerator
	switch {
	case !r.hasCredential(p):
		return NewPlaceholderGenerator(p, model), nil
	case p == ProviderOpenAI:
		gen = NewOpenAIGenerator(*r.openai, model, r.cfg.Temperature, r.cfg.MaxTokens)
	case p == ProviderClaude:
		gen = NewAnthropicGenerator(r.cfg.AnthropicKey, r.cfg.AnthropicURL, model, r.cfg.MaxTokens, r.http)
	case p == ProviderGemini:
		gen = NewGeminiGenerator(r.gemini, model, r.cfg.Temperature, r.cfg.MaxTokens)
	}
	return newInstrumented(newLimited(gen, r.sem), p, model, r.logger), nil
}

func (r *Registry) Catalogue() map[string][]string {
	return copyCatalogue(r.catalogue)
}

func copyCatalogue(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
