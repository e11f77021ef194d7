// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	CreateSession(ctx context.Context, provider, modelName, agentID string, title *string) (*model.ChatSession, error)
	GetHistory(ctx context.Context, sessionID string) (*model.ChatSession, error)
}

type chatUC struct {
	sessions repository.ChatSessionRepository
	logger   *zerolog.Logger
}

func NewChatUseCase(sessions repository.ChatSessionRepository, logger *zerolog.Logger) *chatUC {
	l := logger.With().Str("component", "chat-uc").Logger()
	return &chatUC{sessions: sessions, logger: &l}
}

// CreateSession stores a new empty session. Provider and agent ids are
// resolved when a job runs, so unknown values surface as job failures.
func (c *chatUC) CreateSession(ctx context.Context, provider, modelName, agentID string, title *string) (*model.ChatSession, error) {
	provider = strings.TrimSpace(provider)
	modelName = strings.TrimSpace(modelName)
	agentID = strings.TrimSpace(agentID)
	if provider == "" || modelName == "" || agentID == "" {
		return nil, fmt.Errorf("%w: provider, model and agent_id are required", domain.ErrInvalidArgument)
	}

	s, err := c.sessions.Create(ctx, provider, modelName, agentID, title)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.logger.Info().
		Str("session_id", s.ID).
		Str("provider", s.Provider).
		Str("model", s.Model).
		Str("agent_id", s.AgentID).
		Msg("session created")
	return s, nil
}

func (c *chatUC) GetHistory(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	return c.sessions.FindByID(ctx, sessionID)
}
