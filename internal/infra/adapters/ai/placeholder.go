package ai

import (
	"context"
	"fmt"
	"strings"

	"ai-agent-backend/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*PlaceholderGenerator)(nil)

const placeholderPreview = 1000

// PlaceholderGenerator stands in for a provider with no credential so the
// pipeline can run end to end without network access.
type PlaceholderGenerator struct {
	provider string
	model    string
}

func NewPlaceholderGenerator(provider, model string) *PlaceholderGenerator {
	return &PlaceholderGenerator{provider: strings.ToUpper(provider), model: model}
}

func (p *PlaceholderGenerator) Generate(ctx context.Context, messages []adapter.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	joined := strings.Join(lines, "\n")
	if r := []rune(joined); len(r) > placeholderPreview {
		joined = string(r[:placeholderPreview])
	}
	return fmt.Sprintf("[PLACEHOLDER %s %s] Generated TS/FS based on:\n%s", p.provider, p.model, joined), nil
}
