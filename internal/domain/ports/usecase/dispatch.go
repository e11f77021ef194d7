package usecase

import "context"

// JobExecutor runs one job to completion or failure.
type JobExecutor interface {
	Execute(ctx context.Context, jobID string) error
}

// Dispatcher guarantees a created job is eventually executed. Dispatch only
// schedules; it never waits for execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
	Mode() string
}
