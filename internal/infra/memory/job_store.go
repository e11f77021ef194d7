package memory

import (
	"context"
	"fmt"
	"sync"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
	"ai-agent-backend/internal/infra/ids"
)

var _ repository.AIJobRepository = (*JobStore)(nil)

// JobStore keeps jobs in process memory. Sessions are checked against the
// SessionStore it was built with.
type JobStore struct {
	mu       sync.Mutex
	jobs     map[string]*model.AIJob
	sessions *SessionStore
}

func NewJobStore(sessions *SessionStore) *JobStore {
	return &JobStore{jobs: make(map[string]*model.AIJob), sessions: sessions}
}

func (s *JobStore) Create(_ context.Context, sessionID, prompt string, metadata map[string]string) (*model.AIJob, error) {
	if s.sessions != nil && !s.sessions.exists(sessionID) {
		return nil, domain.ErrNotFound
	}
	job := model.NewAIJob(ids.NewJobID(), sessionID, prompt, metadata)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.Clone(), nil
}

func (s *JobStore) FindByID(_ context.Context, id string) (*model.AIJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *JobStore) Transition(_ context.Context, id string, next model.AIJobStatus, fields model.JobFields) (*model.AIJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !job.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, next)
	}
	job.Apply(next, fields)
	return job.Clone(), nil
}
