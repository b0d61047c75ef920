package queue

import (
	"context"
	"sync"
	"time"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
)

// memJobRepo mirrors the claim semantics of the SQL implementation: state
// created/retry, due now, priority desc then scheduled_at asc.
type memJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	seq       int
	insertSeq map[string]int // insertion order breaks exact ties deterministically
	updateErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{
		jobs:      make(map[string]*model.Job),
		insertSeq: make(map[string]int),
	}
}

func (m *memJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	m.seq++
	m.insertSeq[job.ID] = m.seq
	return nil
}

func (m *memJobRepo) ClaimNext(ctx context.Context, queueName string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var best *model.Job
	for _, j := range m.jobs {
		if j.QueueName != queueName {
			continue
		}
		if j.State != model.JobStateCreated && j.State != model.JobStateRetry {
			continue
		}
		if j.ScheduledAt.After(now) {
			continue
		}
		if best == nil {
			best = j
			continue
		}
		switch {
		case j.Priority > best.Priority:
			best = j
		case j.Priority == best.Priority && j.ScheduledAt.Before(best.ScheduledAt):
			best = j
		case j.Priority == best.Priority && j.ScheduledAt.Equal(best.ScheduledAt) &&
			m.insertSeq[j.ID] < m.insertSeq[best.ID]:
			best = j
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	best.State = model.JobStateActive
	started := now
	best.StartedAt = &started
	cp := *best
	return &cp, nil
}

func (m *memJobRepo) Update(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ExpireActive(ctx context.Context, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	cutoff := time.Now().Add(-ttl)
	for _, j := range m.jobs {
		if j.State == model.JobStateActive && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			j.State = model.JobStateExpired
			j.LastError = domain.ErrJobExpired.Error()
			n++
		}
	}
	return n, nil
}

func (m *memJobRepo) HasPending(ctx context.Context, queueNames []string, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.State.Terminal() {
			continue
		}
		for _, qn := range queueNames {
			if j.QueueName != qn {
				continue
			}
			if id, err := DocumentIDOf(j); err == nil && id == documentID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memJobRepo) get(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp
	}
	return nil
}
