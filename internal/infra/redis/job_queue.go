package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// JobQueue is a reliable list queue of job ids. Reserve moves an id onto
// <name>:processing; Ack removes it; DeadLetter moves it to <name>:dead.
type JobQueue struct {
	cli  *redis.Client
	name string
}

func NewJobQueue(c *Client, name string) *JobQueue {
	return &JobQueue{cli: c.cli, name: name}
}

func (q *JobQueue) Name() string { return q.name }

func (q *JobQueue) processingKey() string { return q.name + ":processing" }
func (q *JobQueue) deadKey() string       { return q.name + ":dead" }

func (q *JobQueue) Push(ctx context.Context, jobID string) error {
	return q.cli.LPush(ctx, q.name, jobID).Err()
}

// Reserve blocks up to timeout and returns "" with a nil error when the
// queue stayed empty.
func (q *JobQueue) Reserve(ctx context.Context, timeout time.Duration) (string, error) {
	id, err := q.cli.BRPopLPush(ctx, q.name, q.processingKey(), timeout).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (q *JobQueue) Ack(ctx context.Context, jobID string) error {
	return q.cli.LRem(ctx, q.processingKey(), 1, jobID).Err()
}

func (q *JobQueue) DeadLetter(ctx context.Context, jobID string) error {
	_, err := q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processingKey(), 1, jobID)
		p.LPush(ctx, q.deadKey(), jobID)
		return nil
	})
	return err
}

// Requeue moves everything left on the processing list back to the queue.
// A consumer calls it at startup to pick up ids a crashed peer reserved.
func (q *JobQueue) Requeue(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.cli.RPopLPush(ctx, q.processingKey(), q.name).Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
