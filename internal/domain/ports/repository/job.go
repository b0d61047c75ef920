package repository

import (
	"context"
	"time"

	"document-ai-pipeline/internal/domain/model"
)

type JobRepository interface {
	Insert(ctx context.Context, tx Tx, job *model.Job) error

	// ClaimNext atomically selects the oldest eligible job on the queue
	// (state created/retry, scheduled_at <= now, ordered by priority desc
	// then scheduled_at asc), marks it active and returns it. Rows locked
	// by concurrent claimants are skipped, never waited on. Returns
	// domain.ErrNotFound when no job is eligible.
	ClaimNext(ctx context.Context, queueName string) (*model.Job, error)

	// Update persists state, retry bookkeeping and timestamps.
	Update(ctx context.Context, tx Tx, job *model.Job) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// ExpireActive moves jobs active for longer than ttl to expired and
	// returns how many were swept.
	ExpireActive(ctx context.Context, ttl time.Duration) (int, error)

	// HasPending reports whether any of the queues holds a non-terminal job
	// whose payload references documentID.
	HasPending(ctx context.Context, queueNames []string, documentID string) (bool, error)
}
