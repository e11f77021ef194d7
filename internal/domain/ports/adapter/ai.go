package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// TextGenerator is the port for a text-generation backend bound to one model.
type TextGenerator interface {
	// Generate returns only the assistant text.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// ProviderRegistry resolves a provider/model pair to a backend.
type ProviderRegistry interface {
	Resolve(provider, model string) (TextGenerator, error)
	// Catalogue lists the advertised models per provider.
	Catalogue() map[string][]string
}
