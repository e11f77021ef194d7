package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-agent-backend/internal/domain/ports/adapter"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
	defaultAnthropicMaxToken = 4096
)

var _ adapter.TextGenerator = (*AnthropicGenerator)(nil)

// AnthropicGenerator calls the Messages API for one model. System messages
// are joined into the top-level system field.
type AnthropicGenerator struct {
	apiKey    string
	endpoint  string
	model     string
	maxTokens int
	client    *http.Client
}

func NewAnthropicGenerator(apiKey, endpoint, model string, maxTokens int, client *http.Client) *AnthropicGenerator {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultAnthropicEndpoint
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxToken
	}
	if client == nil {
		client = &http.Client{Timeout: 300 * time.Second}
	}
	return &AnthropicGenerator{
		apiKey:    strings.TrimSpace(apiKey),
		endpoint:  endpoint,
		model:     model,
		maxTokens: maxTokens,
		client:    client,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AnthropicGenerator) Generate(ctx context.Context, messages []adapter.Message) (string, error) {
	req := anthropicRequest{Model: a.model, MaxTokens: a.maxTokens}
	var system []string
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, m.Content)
		case "user", "assistant":
			req.Messages = append(req.Messages, anthropicMessage{Role: strings.ToLower(m.Role), Content: m.Content})
		}
	}
	req.System = strings.Join(system, "\n")

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("anthropic read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		var env anthropicErrorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			return "", fmt.Errorf("anthropic http %d: %s", resp.StatusCode, env.Error.Message)
		}
		return "", fmt.Errorf("anthropic http %d", resp.StatusCode)
	}

	var out anthropicResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("anthropic decode: %w", err)
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic: no text content")
	}
	return sb.String(), nil
}
