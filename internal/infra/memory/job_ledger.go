package memory

import (
	"context"
	"sync"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
)

var _ repository.JobLedger = (*JobLedger)(nil)

// JobLedger is the single-process ledger. It has its own lock so stream
// readers never wait on the job store.
type JobLedger struct {
	mu      sync.RWMutex
	entries map[string]*model.LedgerEntry
}

func NewJobLedger() *JobLedger {
	return &JobLedger{entries: make(map[string]*model.LedgerEntry)}
}

func (l *JobLedger) Create(_ context.Context, jobID string, metadata map[string]string) error {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	l.mu.Lock()
	l.entries[jobID] = &model.LedgerEntry{
		JobID:    jobID,
		Status:   model.AIJobStatusQueued,
		Logs:     []string{},
		Metadata: meta,
	}
	l.mu.Unlock()
	return nil
}

func (l *JobLedger) Update(_ context.Context, jobID string, u model.LedgerUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[jobID]; ok {
		e.Apply(u)
	}
}

func (l *JobLedger) Get(_ context.Context, jobID string) (model.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[jobID]
	if !ok {
		return model.LedgerEntry{}, domain.ErrNotFound
	}
	return e.Clone(), nil
}
