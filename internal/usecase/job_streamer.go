package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
)

const (
	// EventOpen is emitted once, before anything else, when the job exists.
	EventOpen      = "open"
	EventLog       = "log"
	EventEnd       = "end"
	EventHeartbeat = "heartbeat"
)

// JobEvent is one item of a job's event stream.
type JobEvent struct {
	Type    string
	Message string
	Status  model.AIJobStatus
	Result  *model.LedgerResult
}

// JobStreamer tails a job's ledger by polling. Each call keeps its own
// cursor; the ledger is never modified.
type JobStreamer struct {
	ledger    repository.JobLedger
	interval  time.Duration
	heartbeat time.Duration
	logger    *zerolog.Logger
}

func NewJobStreamer(ledger repository.JobLedger, interval, heartbeat time.Duration, logger *zerolog.Logger) *JobStreamer {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	l := logger.With().Str("component", "job-streamer").Logger()
	return &JobStreamer{ledger: ledger, interval: interval, heartbeat: heartbeat, logger: &l}
}

// Stream emits an open event, every ledger line once, in order, then a
// single end event when the job is terminal. It returns domain.ErrNotFound before emitting
// anything if the job has no ledger entry, and ctx.Err() if the subscriber
// goes away.
func (s *JobStreamer) Stream(ctx context.Context, jobID string, emit func(JobEvent) error) error {
	entry, err := s.ledger.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := emit(JobEvent{Type: EventOpen}); err != nil {
		return err
	}

	cursor := 0
	lastEmit := time.Now()
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		for ; cursor < len(entry.Logs); cursor++ {
			if err := emit(JobEvent{Type: EventLog, Message: entry.Logs[cursor]}); err != nil {
				return err
			}
			lastEmit = time.Now()
		}
		if entry.Status.Terminal() {
			return emit(JobEvent{Type: EventEnd, Status: entry.Status, Result: entry.Result})
		}
		if s.heartbeat > 0 && time.Since(lastEmit) >= s.heartbeat {
			if err := emit(JobEvent{Type: EventHeartbeat}); err != nil {
				return err
			}
			lastEmit = time.Now()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			timer.Reset(s.interval)
		}

		entry, err = s.ledger.Get(ctx, jobID)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("ledger read failed mid-stream")
			return err
		}
	}
}
