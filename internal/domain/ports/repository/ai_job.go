package repository

import (
	"context"

	"ai-agent-backend/internal/domain/model"
)

type AIJobRepository interface {
	// Create inserts a queued job. It fails with domain.ErrNotFound when the
	// session does not exist.
	Create(ctx context.Context, sessionID, prompt string, metadata map[string]string) (*model.AIJob, error)
	FindByID(ctx context.Context, id string) (*model.AIJob, error)
	// Transition atomically moves the job to next and writes fields with it.
	// It fails with domain.ErrNotFound or domain.ErrInvalidTransition.
	Transition(ctx context.Context, id string, next model.AIJobStatus, fields model.JobFields) (*model.AIJob, error)
}
