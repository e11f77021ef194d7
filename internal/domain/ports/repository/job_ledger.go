package repository

import (
	"context"

	"ai-agent-backend/internal/domain/model"
)

// JobLedger is the append-only observability log per job, kept apart from
// the AIJobRepository so stream readers never contend with job writers.
type JobLedger interface {
	Create(ctx context.Context, jobID string, metadata map[string]string) error
	// Update never fails the caller; unknown ids and frozen entries are ignored.
	Update(ctx context.Context, jobID string, u model.LedgerUpdate)
	// Get returns a snapshot, or domain.ErrNotFound.
	Get(ctx context.Context, jobID string) (model.LedgerEntry, error)
}
