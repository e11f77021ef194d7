package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"ai-agent-backend/internal/domain/ports/adapter"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens counts prompt tokens with cl100k_base. It is an estimate
// for every provider; without the encoding it falls back to len/4.
func EstimateTokens(messages []adapter.Message) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	total := 0
	for _, m := range messages {
		if enc != nil {
			total += len(enc.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content) / 4
		}
	}
	return total
}
