package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/repository"
	"ai-agent-backend/internal/infra/ids"
)

var _ repository.AIJobRepository = (*aiJobRepo)(nil)

type aiJobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewAIJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *aiJobRepo {
	return &aiJobRepo{pool: pool, tm: tm}
}

const selectJob = `
SELECT id, session_id, prompt, status, COALESCE(result_message,''), COALESCE(output_path,''),
       COALESCE(error,''), metadata, created_at, updated_at
FROM ai_jobs WHERE id=$1`

func (r *aiJobRepo) Create(ctx context.Context, sessionID, prompt string, metadata map[string]string) (*model.AIJob, error) {
	job := model.NewAIJob(ids.NewJobID(), sessionID, prompt, metadata)
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if job.Metadata == nil {
		meta = []byte("{}")
	}

	const q = `
INSERT INTO ai_jobs (id, session_id, prompt, status, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err = r.pool.Exec(ctx, q, job.ID, job.SessionID, job.Prompt, string(job.Status), meta, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		// FK violation: the session does not exist
		if mapped := mapErr(err); mapped == domain.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (r *aiJobRepo) FindByID(ctx context.Context, id string) (*model.AIJob, error) {
	return r.scanOne(ctx, nil, selectJob+";", id)
}

// Transition locks the row, validates the move and writes it in one transaction.
func (r *aiJobRepo) Transition(ctx context.Context, id string, next model.AIJobStatus, fields model.JobFields) (*model.AIJob, error) {
	var out *model.AIJob
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		job, err := r.scanOne(ctx, tx, selectJob+" FOR UPDATE;", id)
		if err != nil {
			return err
		}
		if !job.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, next)
		}
		job.Apply(next, fields)

		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		const q = `
UPDATE ai_jobs SET status=$2, result_message=NULLIF($3,''), output_path=NULLIF($4,''),
       error=NULLIF($5,''), updated_at=$6
WHERE id=$1;`
		if _, err := ex.Exec(ctx, q, job.ID, string(job.Status), job.ResultMessage, job.OutputPath, job.Error, job.UpdatedAt); err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *aiJobRepo) scanOne(ctx context.Context, tx repository.Tx, q string, id string) (*model.AIJob, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var (
		j      model.AIJob
		status string
		meta   []byte
	)
	err = ex.QueryRow(ctx, q, id).Scan(&j.ID, &j.SessionID, &j.Prompt, &status, &j.ResultMessage,
		&j.OutputPath, &j.Error, &meta, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.Status = model.AIJobStatus(status)
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if len(j.Metadata) == 0 {
			j.Metadata = nil
		}
	}
	return &j, nil
}
