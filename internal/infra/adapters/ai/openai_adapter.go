package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"ai-agent-backend/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator calls the Chat Completions API for one model.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIClient builds a client shared by every OpenAI generator.
func NewOpenAIClient(apiKey, baseURL string) (openai.Client, error) {
	if apiKey == "" {
		return openai.Client{}, errors.New("openai api key empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...), nil
}

func NewOpenAIGenerator(client openai.Client, model string, temperature float64, maxTokens int) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, model: model, temperature: temperature, maxTokens: maxTokens}
}

func (o *OpenAIGenerator) Generate(ctx context.Context, messages []adapter.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(o.model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai: no completion choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
