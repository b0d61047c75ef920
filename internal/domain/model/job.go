package model

import (
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	JobStateCreated   JobState = "created"
	JobStateActive    JobState = "active"
	JobStateRetry     JobState = "retry"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateExpired   JobState = "expired"
)

// Terminal reports whether a job state accepts no further automatic
// transitions. Terminal jobs are retained as the audit trail, never deleted.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateExpired
}

// Queue names of the fixed processing chain.
const (
	QueueParseDocument      = "parse-document"
	QueueGenerateEmbeddings = "generate-embeddings"
	QueueAnalyzeDocument    = "analyze-document"
)

// PipelineQueues lists every queue of the chain, in stage order.
func PipelineQueues() []string {
	return []string{QueueParseDocument, QueueGenerateEmbeddings, QueueAnalyzeDocument}
}

// Job is a durable unit of queued work. At most one worker ever holds a job
// in the active state; the claim query enforces this with a locking read.
type Job struct {
	ID          string
	QueueName   string
	Payload     []byte // JSON, one typed shape per queue name
	State       JobState
	Priority    int
	ScheduledAt time.Time
	RetryCount  int
	RetryLimit  int
	LastError   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func NewJob(queueName string, payload []byte, priority int, scheduledAt time.Time, retryLimit int) *Job {
	now := time.Now()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	return &Job{
		ID:          uuid.NewString(),
		QueueName:   queueName,
		Payload:     payload,
		State:       JobStateCreated,
		Priority:    priority,
		ScheduledAt: scheduledAt,
		RetryLimit:  retryLimit,
		CreatedAt:   now,
	}
}

// JobSnapshot is the read-model returned by the status query.
type JobSnapshot struct {
	ID          string     `json:"id"`
	QueueName   string     `json:"queueName"`
	State       JobState   `json:"state"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
	Error       string     `json:"error,omitempty"`
}

func (j *Job) Snapshot() *JobSnapshot {
	return &JobSnapshot{
		ID:          j.ID,
		QueueName:   j.QueueName,
		State:       j.State,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		RetryCount:  j.RetryCount,
		Error:       j.LastError,
	}
}
