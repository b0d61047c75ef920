package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/infra/metrics"
)

// Options tune a single enqueue. Zero values mean default priority, eligible
// immediately, queue-wide retry limit.
type Options struct {
	Priority   int
	StartAfter time.Time
	RetryLimit int
}

// Queue is the durable, transactional work queue. It owns the job lifecycle
// and knows nothing about document semantics. It is a constructed service
// object: tests run as many isolated instances as they like.
type Queue struct {
	jobs       repository.JobRepository
	retryLimit int
	backoff    Backoff
	log        *zerolog.Logger
}

func New(jobs repository.JobRepository, retryLimit int, retryBase time.Duration, logger *zerolog.Logger) *Queue {
	qlog := logger.With().Str("component", "queue").Logger()
	if retryLimit <= 0 {
		retryLimit = 3
	}
	return &Queue{
		jobs:       jobs,
		retryLimit: retryLimit,
		backoff:    Backoff{Base: retryBase},
		log:        &qlog,
	}
}

// Enqueue validates the payload against the queue name and persists a new
// job. It accepts a nil tx, or the caller's transaction.
func (q *Queue) Enqueue(ctx context.Context, tx repository.Tx, queueName string, payload interface{}, opts Options) (string, error) {
	body, err := EncodePayload(queueName, payload)
	if err != nil {
		return "", err
	}
	retryLimit := opts.RetryLimit
	if retryLimit <= 0 {
		retryLimit = q.retryLimit
	}
	job := model.NewJob(queueName, body, opts.Priority, opts.StartAfter, retryLimit)
	if err := q.jobs.Insert(ctx, tx, job); err != nil {
		return "", err
	}
	metrics.IncJobEnqueued(queueName)
	q.log.Debug().Str("job_id", job.ID).Str("queue", queueName).Int("priority", job.Priority).Msg("job enqueued")
	return job.ID, nil
}

// ClaimNext claims the oldest eligible job of the queue, or returns
// domain.ErrNotFound when none is due.
func (q *Queue) ClaimNext(ctx context.Context, queueName string) (*model.Job, error) {
	return q.jobs.ClaimNext(ctx, queueName)
}

// ValidatePayload re-checks a claimed job's payload shape. A job that fails
// here is malformed at rest and must fail without retry.
func (q *Queue) ValidatePayload(job *model.Job) error {
	_, err := DecodePayload(job.QueueName, job.Payload)
	return err
}

// Complete marks the job completed inside the caller's transaction, the
// same transaction that finalizes the handler's writes.
func (q *Queue) Complete(ctx context.Context, tx repository.Tx, job *model.Job) error {
	now := time.Now()
	job.State = model.JobStateCompleted
	job.CompletedAt = &now
	if err := q.jobs.Update(ctx, tx, job); err != nil {
		return err
	}
	metrics.IncJobProcessed(job.QueueName, string(job.State))
	return nil
}

// Fail applies the retry policy. Retryable errors reschedule the job with
// exponential backoff until the retry limit is exhausted; anything else is a
// terminal failure with the error persisted verbatim for inspection.
// It reports whether the failure was terminal.
func (q *Queue) Fail(ctx context.Context, job *model.Job, jobErr error) (bool, error) {
	job.LastError = jobErr.Error()

	if domain.Retryable(jobErr) && job.RetryCount < job.RetryLimit {
		delay := q.backoff.NextDelay(job.RetryCount)
		job.RetryCount++
		job.State = model.JobStateRetry
		job.ScheduledAt = time.Now().Add(delay)
		if err := q.jobs.Update(ctx, nil, job); err != nil {
			return false, err
		}
		metrics.IncJobProcessed(job.QueueName, string(job.State))
		q.log.Warn().Str("job_id", job.ID).Str("queue", job.QueueName).
			Int("retry_count", job.RetryCount).Dur("delay", delay).Err(jobErr).
			Msg("job failed, scheduled for retry")
		return false, nil
	}

	now := time.Now()
	job.State = model.JobStateFailed
	job.CompletedAt = &now
	if err := q.jobs.Update(ctx, nil, job); err != nil {
		return false, err
	}
	metrics.IncJobProcessed(job.QueueName, string(job.State))
	q.log.Error().Str("job_id", job.ID).Str("queue", job.QueueName).Err(jobErr).
		Msg("job failed permanently")
	return true, nil
}

// ResetToRetry puts a still-active job back on the queue without consuming a
// retry attempt. Used at shutdown so no job is left active, per the expired
// handler being treated as transient.
func (q *Queue) ResetToRetry(ctx context.Context, job *model.Job) error {
	job.State = model.JobStateRetry
	job.ScheduledAt = time.Now()
	job.LastError = domain.ErrJobExpired.Error()
	return q.jobs.Update(ctx, nil, job)
}

// Status returns the read-model of a job.
func (q *Queue) Status(ctx context.Context, id string) (*model.JobSnapshot, error) {
	job, err := q.jobs.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return job.Snapshot(), nil
}

// Requeue manually re-enqueues a failed or expired job. Retry bookkeeping
// restarts; the job's history row is reused, preserving its identity.
func (q *Queue) Requeue(ctx context.Context, id string) (*model.JobSnapshot, error) {
	job, err := q.jobs.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if job.State != model.JobStateFailed && job.State != model.JobStateExpired {
		return nil, domain.ErrJobNotRequeueable
	}
	job.State = model.JobStateCreated
	job.ScheduledAt = time.Now()
	job.RetryCount = 0
	job.LastError = ""
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := q.jobs.Update(ctx, nil, job); err != nil {
		return nil, err
	}
	q.log.Info().Str("job_id", job.ID).Str("queue", job.QueueName).Msg("job requeued")
	return job.Snapshot(), nil
}

// SweepExpired forcibly expires jobs active past the TTL. Expired jobs are
// eligible for manual requeue, never automatic retry.
func (q *Queue) SweepExpired(ctx context.Context, ttl time.Duration) (int, error) {
	n, err := q.jobs.ExpireActive(ctx, ttl)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddJobsExpired(n)
		q.log.Warn().Int("count", n).Dur("ttl", ttl).Msg("expired stuck jobs")
	}
	return n, nil
}

// HasPending reports whether the document already has a queued or active job
// on any of the given queues. Callers use it to keep one writer per document
// per stage.
func (q *Queue) HasPending(ctx context.Context, queueNames []string, documentID string) (bool, error) {
	return q.jobs.HasPending(ctx, queueNames, documentID)
}

// IsNotFound is a convenience for pollers.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
