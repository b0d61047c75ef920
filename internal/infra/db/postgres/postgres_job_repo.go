package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, queue_name, payload, state, priority, scheduled_at,
retry_count, retry_limit, last_error, created_at, started_at, completed_at`

func (r *jobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, queue_name, payload, state, priority, scheduled_at,
                  retry_count, retry_limit, last_error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.QueueName, job.Payload, job.State, job.Priority, job.ScheduledAt,
		job.RetryCount, job.RetryLimit, job.LastError, job.CreatedAt)
	return err
}

// ClaimNext is the central concurrency primitive of the queue. The locking
// read skips rows held by concurrent claimants, so two workers can never
// observe the same job and an in-flight claim never blocks unrelated claims.
func (r *jobRepo) ClaimNext(ctx context.Context, queueName string) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + jobColumns + `
FROM jobs
WHERE queue_name = $1
  AND state IN ('created', 'retry')
  AND scheduled_at <= now()
ORDER BY priority DESC, scheduled_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery, queueName)
		if err != nil {
			return err
		}
		claimed, err := scanJob(row)
		if err != nil {
			return err
		}

		now := time.Now()
		claimed.State = model.JobStateActive
		claimed.StartedAt = &now

		const markQuery = `
UPDATE jobs SET state = $2, started_at = $3 WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, markQuery, claimed.ID, claimed.State, claimed.StartedAt); err != nil {
			return err
		}

		job = claimed
		return nil
	})

	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) Update(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
UPDATE jobs SET
  state = $2,
  scheduled_at = $3,
  retry_count = $4,
  last_error = $5,
  started_at = $6,
  completed_at = $7
WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.State, job.ScheduledAt, job.RetryCount, job.LastError,
		job.StartedAt, job.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ExpireActive(ctx context.Context, ttl time.Duration) (int, error) {
	const q = `
UPDATE jobs SET
  state = 'expired',
  completed_at = now(),
  last_error = 'expired: active longer than allowed TTL'
WHERE state = 'active' AND started_at < now() - $1::interval;`

	tag, err := execSQL(ctx, r.pool, nil, q, ttl.String())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *jobRepo) HasPending(ctx context.Context, queueNames []string, documentID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM jobs
  WHERE queue_name = ANY($1)
    AND state IN ('created', 'retry', 'active')
    AND payload->>'documentId' = $2
);`

	row, err := pickRow(ctx, r.pool, nil, q, queueNames, documentID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var state string
	err := row.Scan(
		&j.ID, &j.QueueName, &j.Payload, &state, &j.Priority, &j.ScheduledAt,
		&j.RetryCount, &j.RetryLimit, &j.LastError, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	j.State = model.JobState(state)
	return &j, nil
}
