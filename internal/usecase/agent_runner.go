package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/adapter"
	"ai-agent-backend/internal/domain/ports/repository"
	"ai-agent-backend/internal/domain/ports/usecase"
	"ai-agent-backend/internal/infra/logging"
	"ai-agent-backend/internal/infra/metrics"
)

var _ usecase.JobExecutor = (*AgentRunner)(nil)

// AgentRunner executes one job and reconciles the outcome into the job
// store, the session history and the ledger. It always returns the failure;
// whether that goes further is the dispatcher's decision.
type AgentRunner struct {
	jobs      repository.AIJobRepository
	sessions  repository.ChatSessionRepository
	ledger    repository.JobLedger
	agents    adapter.AgentRegistry
	providers adapter.ProviderRegistry
	logger    *zerolog.Logger
}

func NewAgentRunner(
	jobs repository.AIJobRepository,
	sessions repository.ChatSessionRepository,
	ledger repository.JobLedger,
	agents adapter.AgentRegistry,
	providers adapter.ProviderRegistry,
	logger *zerolog.Logger,
) *AgentRunner {
	l := logger.With().Str("component", "agent-runner").Logger()
	return &AgentRunner{jobs: jobs, sessions: sessions, ledger: ledger, agents: agents, providers: providers, logger: &l}
}

func (r *AgentRunner) Execute(ctx context.Context, jobID string) error {
	ctx = logging.WithJobID(ctx, jobID)
	lg := logging.With(ctx, r.logger)

	job, err := r.jobs.FindByID(ctx, jobID)
	if err != nil {
		lg.Error().Err(err).Msg("job not found; aborting")
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if _, err := r.jobs.Transition(ctx, jobID, model.AIJobStatusRunning, model.JobFields{}); err != nil {
		lg.Warn().Err(err).Msg("cannot start job")
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	r.ledger.Update(ctx, jobID, model.LedgerUpdate{
		Status: model.StatusPtr(model.AIJobStatusRunning),
		Log:    "Job started",
	})
	start := time.Now()

	agentID, res, err := r.runGuarded(ctx, job)
	if err == nil {
		if _, aerr := r.sessions.AppendMessage(ctx, job.SessionID, model.RoleAssistant, res.Text); aerr != nil {
			lg.Error().Err(aerr).Msg("append assistant message failed")
		}

		fields := model.JobFields{ResultMessage: &res.Text}
		if res.OutputDocxPath != "" {
			fields.OutputPath = &res.OutputDocxPath
		}
		if _, terr := r.jobs.Transition(ctx, jobID, model.AIJobStatusCompleted, fields); terr != nil {
			lg.Error().Err(terr).Msg("failed to record job completion")
			err = fmt.Errorf("complete job %s: %w", jobID, terr)
		} else {
			r.ledger.Update(ctx, jobID, model.LedgerUpdate{
				Status: model.StatusPtr(model.AIJobStatusCompleted),
				Log:    "Job completed",
				Result: &model.LedgerResult{ResultMessage: res.Text, OutputPath: res.OutputDocxPath},
			})
			took := time.Since(start)
			metrics.ObserveJobFinished(agentID, string(model.AIJobStatusCompleted), took)
			lg.Info().Str("status", string(model.AIJobStatusCompleted)).Dur("duration", took).Msg("job finished")
			return nil
		}
	}
	return r.fail(ctx, lg, jobID, agentID, start, err)
}

// fail records cause as the job's terminal error. The ledger only turns
// terminal once the job store accepted the failure, so both always agree.
func (r *AgentRunner) fail(ctx context.Context, lg *zerolog.Logger, jobID, agentID string, start time.Time, cause error) error {
	msg := cause.Error()
	if _, terr := r.jobs.Transition(ctx, jobID, model.AIJobStatusFailed, model.JobFields{Error: &msg}); terr != nil {
		lg.Error().Err(terr).AnErr("cause", cause).Msg("failed to record job failure")
		r.ledger.Update(ctx, jobID, model.LedgerUpdate{Log: "Failed to record job failure: " + msg})
		return fmt.Errorf("%w; record failure: %w", cause, terr)
	}
	r.ledger.Update(ctx, jobID, model.LedgerUpdate{
		Status: model.StatusPtr(model.AIJobStatusFailed),
		Log:    "Job failed: " + msg,
	})
	took := time.Since(start)
	metrics.ObserveJobFinished(agentID, string(model.AIJobStatusFailed), took)
	lg.Warn().Err(cause).Str("status", string(model.AIJobStatusFailed)).Dur("duration", took).Msg("job finished")
	return cause
}

// runGuarded turns a panic in an agent or backend into an ordinary failure.
func (r *AgentRunner) runGuarded(ctx context.Context, job *model.AIJob) (agentID string, res adapter.AgentResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("job_id", job.ID).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("agent panicked")
			if agentID == "" {
				agentID = job.Metadata["agent_id"]
			}
			res, err = adapter.AgentResult{}, fmt.Errorf("agent panicked: %v", p)
		}
	}()
	return r.run(ctx, job)
}

// run covers the steps whose failure marks the job failed. The agent id is
// returned even on error for metrics labels.
func (r *AgentRunner) run(ctx context.Context, job *model.AIJob) (string, adapter.AgentResult, error) {
	session, err := r.sessions.FindByID(ctx, job.SessionID)
	if err != nil {
		return "", adapter.AgentResult{}, fmt.Errorf("load session %s: %w", job.SessionID, err)
	}
	ctx = logging.WithSessID(ctx, session.ID)

	agent, err := r.agents.Get(session.AgentID)
	if err != nil {
		return session.AgentID, adapter.AgentResult{}, err
	}
	backend, err := r.providers.Resolve(session.Provider, session.Model)
	if err != nil {
		return session.AgentID, adapter.AgentResult{}, err
	}

	if _, err := r.sessions.AppendMessage(ctx, session.ID, model.RoleUser, job.Prompt); err != nil {
		return session.AgentID, adapter.AgentResult{}, fmt.Errorf("append user message: %w", err)
	}
	r.ledger.Update(ctx, job.ID, model.LedgerUpdate{
		Log: fmt.Sprintf("Running agent %s with %s/%s", agent.Info().Name, session.Provider, session.Model),
	})

	progressCtx := adapter.WithProgress(ctx, func(line string) {
		r.ledger.Update(ctx, job.ID, model.LedgerUpdate{Log: line})
	})
	res, err := agent.Run(progressCtx, job.ID, job.Prompt, backend, session)
	return session.AgentID, res, err
}
