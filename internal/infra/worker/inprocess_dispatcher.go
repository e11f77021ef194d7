package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/config"
	"ai-agent-backend/internal/domain/ports/usecase"
	"ai-agent-backend/internal/infra/metrics"
)

var _ usecase.Dispatcher = (*InProcessDispatcher)(nil)

// InProcessDispatcher runs jobs on the local pool. When the pool buffer is
// full a job may run on an overflow goroutine; overflow is capped at the
// pool's queue size, beyond which Dispatch returns ErrQueueFull and the job
// stays queued. Execution errors are logged here and go no further; the job
// and ledger already carry the failure.
type InProcessDispatcher struct {
	base     context.Context
	pool     *Pool
	exec     usecase.JobExecutor
	overflow chan struct{}
	logger   *zerolog.Logger
}

// NewInProcessDispatcher binds execution to base, which must outlive the
// HTTP request that created the job. Cancelling base does not interrupt
// jobs that already started.
func NewInProcessDispatcher(base context.Context, pool *Pool, exec usecase.JobExecutor, logger *zerolog.Logger) *InProcessDispatcher {
	l := logger.With().Str("component", "inprocess-dispatcher").Logger()
	return &InProcessDispatcher{
		base:     base,
		pool:     pool,
		exec:     exec,
		overflow: make(chan struct{}, pool.QueueSize()),
		logger:   &l,
	}
}

func (d *InProcessDispatcher) Mode() string { return config.DispatchInProcess }

func (d *InProcessDispatcher) Dispatch(_ context.Context, jobID string) error {
	task := func(ctx context.Context) error {
		if err := d.exec.Execute(context.WithoutCancel(ctx), jobID); err != nil {
			d.logger.Warn().Err(err).Str("job_id", jobID).Msg("job execution failed")
		}
		return nil
	}

	err := d.pool.Submit(task)
	switch {
	case err == nil:
		metrics.IncDispatch(d.Mode(), "ok")
	case errors.Is(err, ErrQueueFull):
		select {
		case d.overflow <- struct{}{}:
		default:
			metrics.IncDispatch(d.Mode(), "rejected")
			d.logger.Warn().Str("job_id", jobID).Msg("pool and overflow saturated")
			return err
		}
		d.logger.Debug().Str("job_id", jobID).Msg("pool saturated; running on an overflow goroutine")
		metrics.IncDispatch(d.Mode(), "fallback")
		go func() {
			defer func() { <-d.overflow }()
			d.pool.run(d.base, -1, task)
		}()
	default:
		metrics.IncDispatch(d.Mode(), "error")
		return err
	}
	return nil
}
