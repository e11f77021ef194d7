package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/ports/usecase"
	"ai-agent-backend/internal/infra/metrics"
	"ai-agent-backend/internal/infra/redis"
)

// Queue is the consuming side of a reliable job queue.
type Queue interface {
	Name() string
	Reserve(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	DeadLetter(ctx context.Context, jobID string) error
	Requeue(ctx context.Context) (int, error)
}

const reserveTimeout = 5 * time.Second

// Consumer pulls job ids off a Queue and executes them. Unlike the
// in-process dispatcher, execution errors propagate: the message is
// dead-lettered and counted.
type Consumer struct {
	queue   Queue
	locker  redis.Locker
	exec    usecase.JobExecutor
	workers int
	lockTTL time.Duration
	logger  *zerolog.Logger
}

func NewConsumer(q Queue, locker redis.Locker, exec usecase.JobExecutor, workers int, lockTTL time.Duration, logger *zerolog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	l := logger.With().Str("component", "queue-consumer").Str("queue", q.Name()).Logger()
	return &Consumer{queue: q, locker: locker, exec: exec, workers: workers, lockTTL: lockTTL, logger: &l}
}

// Run requeues leftovers from a previous run, then consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	n, err := c.queue.Requeue(ctx)
	if err != nil {
		return fmt.Errorf("requeue in-flight jobs: %w", err)
	}
	if n > 0 {
		c.logger.Info().Int("count", n).Msg("requeued in-flight jobs")
	}

	c.logger.Info().Int("workers", c.workers).Msg("consumer started")
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	c.logger.Info().Msg("consumer stopped")
	return nil
}

func (c *Consumer) loop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := c.queue.Reserve(ctx, reserveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Int("worker", id).Msg("reserve failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if jobID == "" {
			continue
		}
		if err := c.Handle(ctx, jobID); err != nil {
			c.logger.Error().Err(err).Int("worker", id).Str("job_id", jobID).Msg("job failed")
		}
	}
}

// Handle executes one reserved job under its lock and settles the message.
// Once reserved, a job runs to the end: cancelling ctx stops the loop from
// reserving more ids but never interrupts the job or its bookkeeping.
func (c *Consumer) Handle(ctx context.Context, jobID string) error {
	ctx = context.WithoutCancel(ctx)
	key := redis.JobLockKey(jobID)
	token, err := c.locker.TryLock(ctx, key, c.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLocked) {
			// a peer already owns this job
			c.logger.Warn().Str("job_id", jobID).Msg("job locked elsewhere; dropping duplicate")
			return c.queue.Ack(ctx, jobID)
		}
		return fmt.Errorf("lock job: %w", err)
	}
	defer func() {
		if err := c.locker.Unlock(ctx, key, token); err != nil {
			c.logger.Warn().Err(err).Str("job_id", jobID).Msg("unlock failed")
		}
	}()

	if execErr := c.exec.Execute(ctx, jobID); execErr != nil {
		metrics.IncQueueConsumerFailure(c.queue.Name())
		if err := c.queue.DeadLetter(ctx, jobID); err != nil {
			c.logger.Error().Err(err).Str("job_id", jobID).Msg("dead-letter failed")
		}
		return execErr
	}
	return c.queue.Ack(ctx, jobID)
}
