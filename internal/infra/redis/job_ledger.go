package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
)

var _ repository.JobLedger = (*JobLedger)(nil)

// JobLedger shares ledger entries between the API and worker processes.
// An entry is a hash job_ledger:<id> plus a list job_ledger:<id>:logs.
type JobLedger struct {
	cli    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewJobLedger(c *Client, ttl time.Duration, logger *zerolog.Logger) *JobLedger {
	l := logger.With().Str("component", "redis-ledger").Logger()
	return &JobLedger{cli: c.cli, ttl: ttl, logger: &l}
}

func ledgerKey(jobID string) string { return "job_ledger:" + jobID }
func logsKey(jobID string) string   { return "job_ledger:" + jobID + ":logs" }

func (l *JobLedger) Create(ctx context.Context, jobID string, metadata map[string]string) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = l.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, logsKey(jobID))
		p.HSet(ctx, ledgerKey(jobID), "status", string(model.AIJobStatusQueued), "metadata", string(meta))
		p.HDel(ctx, ledgerKey(jobID), "result")
		p.Expire(ctx, ledgerKey(jobID), l.ttl)
		return nil
	})
	return err
}

// luaLedgerUpdate applies one update unless the entry is missing (-1) or
// already terminal (0).
var luaLedgerUpdate = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "status")
if not cur then
	return -1
end
if cur == "completed" or cur == "failed" then
	return 0
end
if ARGV[2] ~= "" then
	redis.call("RPUSH", KEYS[2], ARGV[2])
end
if ARGV[1] ~= "" then
	redis.call("HSET", KEYS[1], "status", ARGV[1])
end
if ARGV[3] ~= "" then
	redis.call("HSET", KEYS[1], "result", ARGV[3])
end
local ttl = tonumber(ARGV[4])
if ttl and ttl > 0 then
	redis.call("EXPIRE", KEYS[1], ttl)
	redis.call("EXPIRE", KEYS[2], ttl)
end
return 1`)

func (l *JobLedger) Update(ctx context.Context, jobID string, u model.LedgerUpdate) {
	var status, result string
	if u.Status != nil {
		status = string(*u.Status)
	}
	if u.Result != nil {
		b, err := json.Marshal(u.Result)
		if err != nil {
			l.logger.Error().Err(err).Str("job_id", jobID).Msg("marshal ledger result")
			return
		}
		result = string(b)
	}
	err := luaLedgerUpdate.Run(ctx, l.cli,
		[]string{ledgerKey(jobID), logsKey(jobID)},
		status, u.Log, result, int64(l.ttl.Seconds()),
	).Err()
	if err != nil {
		l.logger.Warn().Err(err).Str("job_id", jobID).Msg("ledger update failed")
	}
}

func (l *JobLedger) Get(ctx context.Context, jobID string) (model.LedgerEntry, error) {
	var (
		hash *redis.StringStringMapCmd
		logs *redis.StringSliceCmd
	)
	_, err := l.cli.Pipelined(ctx, func(p redis.Pipeliner) error {
		hash = p.HGetAll(ctx, ledgerKey(jobID))
		logs = p.LRange(ctx, logsKey(jobID), 0, -1)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.LedgerEntry{}, err
	}
	fields := hash.Val()
	if len(fields) == 0 {
		return model.LedgerEntry{}, domain.ErrNotFound
	}

	e := model.LedgerEntry{
		JobID:  jobID,
		Status: model.AIJobStatus(fields["status"]),
		Logs:   logs.Val(),
	}
	if e.Logs == nil {
		e.Logs = []string{}
	}
	if raw := fields["result"]; raw != "" {
		var r model.LedgerResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return model.LedgerEntry{}, err
		}
		e.Result = &r
	}
	if raw := fields["metadata"]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &e.Metadata); err != nil {
			return model.LedgerEntry{}, err
		}
	}
	return e, nil
}
