package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
	"ai-agent-backend/internal/domain/ports/usecase"
	"ai-agent-backend/internal/infra/logging"
	"ai-agent-backend/internal/infra/metrics"
)

var _ JobUseCase = (*jobUC)(nil)

var (
	ErrNoDocument      = fmt.Errorf("%w: No DOCX generated for this job", domain.ErrNotFound)
	ErrDocumentMissing = fmt.Errorf("%w: DOCX file not found", domain.ErrNotFound)
)

type JobUseCase interface {
	// Create stores a queued job for an existing session and dispatches it.
	Create(ctx context.Context, sessionID, prompt string) (*model.AIJob, error)
	Get(ctx context.Context, jobID string) (*model.AIJob, error)
	// DocumentPath returns the job's rendered document, or domain.ErrNotFound
	// when there is none on disk.
	DocumentPath(ctx context.Context, jobID string) (string, error)
}

type jobUC struct {
	sessions   repository.ChatSessionRepository
	jobs       repository.AIJobRepository
	ledger     repository.JobLedger
	dispatcher usecase.Dispatcher
	logger     *zerolog.Logger
}

func NewJobUseCase(
	sessions repository.ChatSessionRepository,
	jobs repository.AIJobRepository,
	ledger repository.JobLedger,
	dispatcher usecase.Dispatcher,
	logger *zerolog.Logger,
) *jobUC {
	l := logger.With().Str("component", "job-uc").Logger()
	return &jobUC{sessions: sessions, jobs: jobs, ledger: ledger, dispatcher: dispatcher, logger: &l}
}

func (u *jobUC) Create(ctx context.Context, sessionID, prompt string) (*model.AIJob, error) {
	defer logging.TraceDuration(u.logger, "JobUseCase.Create")()

	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidArgument)
	}
	s, err := u.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{"session_id": s.ID, "agent_id": s.AgentID}
	job, err := u.jobs.Create(ctx, s.ID, prompt, meta)
	if err != nil {
		return nil, err
	}
	lg := logging.With(logging.WithJobID(logging.WithSessID(ctx, s.ID), job.ID), u.logger)

	// the ledger must exist before dispatch so the runner's lines land
	if err := u.ledger.Create(ctx, job.ID, meta); err != nil {
		lg.Warn().Err(err).Msg("ledger create failed; job events will be unavailable")
	}
	u.ledger.Update(ctx, job.ID, model.LedgerUpdate{Log: "Job queued"})
	metrics.IncJobCreated(s.AgentID)

	if err := u.dispatcher.Dispatch(ctx, job.ID); err != nil {
		u.ledger.Update(ctx, job.ID, model.LedgerUpdate{Log: "Dispatch failed: " + err.Error()})
		lg.Error().Err(err).Str("mode", u.dispatcher.Mode()).Msg("dispatch failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	lg.Info().Str("mode", u.dispatcher.Mode()).Msg("job dispatched")
	return job, nil
}

func (u *jobUC) Get(ctx context.Context, jobID string) (*model.AIJob, error) {
	return u.jobs.FindByID(ctx, jobID)
}

func (u *jobUC) DocumentPath(ctx context.Context, jobID string) (string, error) {
	job, err := u.jobs.FindByID(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.OutputPath == "" {
		return "", ErrNoDocument
	}
	fi, err := os.Stat(job.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrDocumentMissing
		}
		return "", domain.IO(err)
	}
	if fi.IsDir() {
		return "", ErrDocumentMissing
	}
	return job.OutputPath, nil
}
