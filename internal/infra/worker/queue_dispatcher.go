package worker

import (
	"context"

	"ai-agent-backend/internal/config"
	"ai-agent-backend/internal/domain/ports/usecase"
	"ai-agent-backend/internal/infra/metrics"
)

// Publisher is the producing side of a job queue.
type Publisher interface {
	Push(ctx context.Context, jobID string) error
}

var _ usecase.Dispatcher = (*QueueDispatcher)(nil)

// QueueDispatcher hands job ids to a shared queue for a separate consumer.
type QueueDispatcher struct {
	pub Publisher
}

func NewQueueDispatcher(pub Publisher) *QueueDispatcher {
	return &QueueDispatcher{pub: pub}
}

func (d *QueueDispatcher) Mode() string { return config.DispatchRedis }

func (d *QueueDispatcher) Dispatch(ctx context.Context, jobID string) error {
	if err := d.pub.Push(ctx, jobID); err != nil {
		metrics.IncDispatch(d.Mode(), "error")
		return err
	}
	metrics.IncDispatch(d.Mode(), "ok")
	return nil
}
