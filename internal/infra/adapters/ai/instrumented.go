package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain/ports/adapter"
	"ai-agent-backend/internal/infra/metrics"
)

type instrumentedGenerator struct {
	inner    adapter.TextGenerator
	provider string
	model    string
	logger   *zerolog.Logger
}

func newInstrumented(inner adapter.TextGenerator, provider, model string, logger *zerolog.Logger) adapter.TextGenerator {
	return &instrumentedGenerator{inner: inner, provider: provider, model: model, logger: logger}
}

func (g *instrumentedGenerator) Generate(ctx context.Context, messages []adapter.Message) (string, error) {
	tokens := EstimateTokens(messages)
	start := time.Now()
	out, err := g.inner.Generate(ctx, messages)
	took := time.Since(start)

	metrics.ObserveAICall(g.provider, g.model, tokens, took, err == nil)
	ev := g.logger.Debug()
	if err != nil {
		ev = g.logger.Warn().Err(err)
	}
	ev.Str("provider", g.provider).
		Str("model", g.model).
		Int("prompt_tokens_est", tokens).
		Dur("latency", took).
		Msg("ai call")
	return out, err
}
