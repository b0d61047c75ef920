package web

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/queue"
)

// --- In-memory ports backing real use cases in handler tests ---

type mockDocRepo struct {
	mu    sync.Mutex
	store map[string]*model.Document
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{store: make(map[string]*model.Document)}
}

func (m *mockDocRepo) Insert(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.store[doc.ID] = &cp
	return nil
}

func (m *mockDocRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDocRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.DocumentStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	d.Error = errMsg
	return nil
}

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*model.Job)}
}

func (m *mockJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobRepo) ClaimNext(ctx context.Context, queueName string) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (m *mockJobRepo) Update(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *mockJobRepo) ExpireActive(ctx context.Context, ttl time.Duration) (int, error) {
	return 0, nil
}

func (m *mockJobRepo) HasPending(ctx context.Context, queueNames []string, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.State.Terminal() {
			continue
		}
		if id, err := queue.DocumentIDOf(j); err == nil && id == documentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockJobRepo) setState(id string, state model.JobState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.State = state
	}
}

type mockChunkRepo struct {
	results []*model.RankedResult
}

func (m *mockChunkRepo) ReplaceForDocument(ctx context.Context, tx repository.Tx, documentID string, chunks []*model.Chunk) error {
	return nil
}

func (m *mockChunkRepo) ListByDocument(ctx context.Context, tx repository.Tx, documentID string) ([]*model.Chunk, error) {
	return nil, nil
}

func (m *mockChunkRepo) UpdateEmbeddings(ctx context.Context, tx repository.Tx, vectors map[string][]float32) error {
	return nil
}

func (m *mockChunkRepo) Search(ctx context.Context, vector []float32, filters repository.SearchFilters, topK int) ([]*model.RankedResult, error) {
	return m.results, nil
}

type mockStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMockStore() *mockStore {
	return &mockStore{files: make(map[string][]byte)}
}

func (m *mockStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[storageKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStore) Save(ctx context.Context, storageKey string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[storageKey] = data
	return nil
}

type mockEmbedder struct{}

func (mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, adapter.Usage, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, adapter.Usage{}, nil
}

func (mockEmbedder) Dimension() int { return 4 }
func (mockEmbedder) Model() string  { return "mock-model" }

// mockLimiter scripts the rate-limit verdict.
type mockLimiter struct {
	allow bool
	calls int
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.calls++
	return m.allow, nil
}
