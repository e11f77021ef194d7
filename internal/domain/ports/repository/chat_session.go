package repository

import (
	"context"

	"ai-agent-backend/internal/domain/model"
)

// ChatSessionRepository is the Session Store. Implementations must be safe for
// concurrent use; AppendMessage is an atomic read-modify-write.
type ChatSessionRepository interface {
	Create(ctx context.Context, provider, modelName, agentID string, title *string) (*model.ChatSession, error)
	// FindByID returns a copy of the session; domain.ErrNotFound when absent.
	FindByID(ctx context.Context, id string) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, role model.MessageRole, content string) (model.ChatMessage, error)
}
