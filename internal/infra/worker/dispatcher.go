package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/infra/metrics"
	"document-ai-pipeline/internal/queue"
)

// Finalize is the transactional tail of a handler: it runs inside the same
// transaction that marks the job completed and enqueues the next stage, so a
// document is never half-written from the queue's point of view.
type Finalize func(ctx context.Context, tx repository.Tx) error

// Handler processes jobs of one queue. Execute does the slow work (parsing,
// provider calls) and returns the writes as a Finalize; OnFailure runs when
// the job transitions to terminal failed, so the handler can surface the
// failure on the owning document.
type Handler interface {
	Queue() string
	Execute(ctx context.Context, job *model.Job) (Finalize, error)
	OnFailure(ctx context.Context, job *model.Job, jobErr error)
}

// Dispatcher polls the queue and runs handlers on a worker pool. Handler
// errors never crash a worker: they are translated into retry/fail
// transitions at this boundary. Only queue-storage errors stop a poll loop,
// since no job state can be safely recorded without storage.
type Dispatcher struct {
	queue    *queue.Queue
	tm       repository.TransactionManager
	pool     *Pool
	poll     time.Duration
	handlers map[string]Handler
	log      *zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*model.Job
	loops    sync.WaitGroup
}

func NewDispatcher(q *queue.Queue, tm repository.TransactionManager, pool *Pool, poll time.Duration, logger *zerolog.Logger) *Dispatcher {
	dlog := logger.With().Str("component", "dispatcher").Logger()
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Dispatcher{
		queue:    q,
		tm:       tm,
		pool:     pool,
		poll:     poll,
		handlers: make(map[string]Handler),
		inflight: make(map[string]*model.Job),
		log:      &dlog,
	}
}

func (d *Dispatcher) Register(h Handler) {
	d.handlers[h.Queue()] = h
}

// Start launches one poll loop per registered queue. Loops stop claiming as
// soon as ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for name, h := range d.handlers {
		d.loops.Add(1)
		go d.pollLoop(ctx, name, h)
	}
}

func (d *Dispatcher) pollLoop(ctx context.Context, queueName string, h Handler) {
	defer d.loops.Done()
	d.log.Info().Str("queue", queueName).Msg("poll loop started")

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Str("queue", queueName).Msg("poll loop stopping")
			return
		case <-ticker.C:
			_ = d.pool.Submit(func(ctx context.Context) error {
				return d.drain(ctx, h)
			})
		}
	}
}

// drain processes jobs until the queue runs dry or the context ends.
func (d *Dispatcher) drain(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		ok, err := d.processOne(ctx, h)
		if err != nil {
			// storage failure: surface it and let the pool log; the next
			// tick retries against storage
			return err
		}
		if !ok {
			return nil
		}
	}
}

// processOne claims and runs a single job. The returned bool reports whether
// a job was claimed at all.
func (d *Dispatcher) processOne(ctx context.Context, h Handler) (bool, error) {
	job, err := d.queue.ClaimNext(ctx, h.Queue())
	if err != nil {
		if queue.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	d.track(job)
	defer d.untrack(job)

	jlog := d.log.With().Str("job_id", job.ID).Str("queue", job.QueueName).Logger()
	jlog.Info().Int("retry_count", job.RetryCount).Msg("processing job")
	start := time.Now()

	if err := d.queue.ValidatePayload(job); err != nil {
		d.failJob(ctx, h, job, err)
		return true, nil
	}

	fin, err := h.Execute(ctx, job)
	if err == nil {
		err = d.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if fin != nil {
				if err := fin(ctx, tx); err != nil {
					return err
				}
			}
			if err := d.queue.Complete(ctx, tx, job); err != nil {
				return err
			}
			return d.queue.Advance(ctx, tx, job)
		})
	}

	elapsed := time.Since(start)
	metrics.ObserveJobDuration(job.QueueName, elapsed.Seconds())

	if err != nil {
		d.failJob(ctx, h, job, err)
		jlog.Warn().Dur("duration", elapsed).Err(err).Msg("job finished with error")
		return true, nil
	}
	jlog.Info().Dur("duration", elapsed).Msg("job completed")
	return true, nil
}

func (d *Dispatcher) failJob(ctx context.Context, h Handler, job *model.Job, jobErr error) {
	terminal, err := d.queue.Fail(ctx, job, jobErr)
	if err != nil {
		d.log.Error().Str("job_id", job.ID).Err(err).Msg("could not record job failure")
		return
	}
	if terminal {
		h.OnFailure(ctx, job, jobErr)
	}
}

func (d *Dispatcher) track(job *model.Job) {
	d.mu.Lock()
	d.inflight[job.ID] = job
	d.mu.Unlock()
}

func (d *Dispatcher) untrack(job *model.Job) {
	d.mu.Lock()
	delete(d.inflight, job.ID)
	d.mu.Unlock()
}

// Shutdown waits for in-flight handlers up to the grace period, then resets
// whatever is still active to retry so no job is left stuck in the active
// state. Callers cancel the Start context first, which stops all claiming.
func (d *Dispatcher) Shutdown(grace time.Duration) {
	d.loops.Wait()

	done := make(chan struct{})
	go func() {
		d.pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		d.log.Warn().Dur("grace", grace).Msg("shutdown grace period exceeded, resetting in-flight jobs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, job := range d.inflight {
		if err := d.queue.ResetToRetry(ctx, job); err != nil {
			d.log.Error().Str("job_id", job.ID).Err(err).Msg("failed to reset in-flight job")
			continue
		}
		d.log.Warn().Str("job_id", job.ID).Msg("in-flight job reset to retry at shutdown")
	}
}
