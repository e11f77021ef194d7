package ai

import (
	"context"

	"ai-agent-backend/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*limitedGenerator)(nil)

// limitedGenerator caps concurrent upstream calls across every generator
// sharing sem.
type limitedGenerator struct {
	inner adapter.TextGenerator
	sem   chan struct{}
}

func newLimited(inner adapter.TextGenerator, sem chan struct{}) adapter.TextGenerator {
	if sem == nil {
		return inner
	}
	return &limitedGenerator{inner: inner, sem: sem}
}

func (l *limitedGenerator) Generate(ctx context.Context, messages []adapter.Message) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, messages)
}
