package usecase

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/queue"
)

// memDocRepo is a small in-memory implementation used by unit tests.
type memDocRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Document
	insertErr error
	statusErr error
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{store: make(map[string]*model.Document)}
}

func (m *memDocRepo) Insert(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.store[doc.ID] = &cp
	return nil
}

func (m *memDocRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.DocumentStatus, errMsg string) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	if status.Failed() {
		d.Error = errMsg
	} else {
		d.Error = ""
	}
	d.UpdatedAt = time.Now()
	return nil
}

func (m *memDocRepo) status(id string) model.DocumentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return d.Status
	}
	return ""
}

// memChunkRepo keeps chunks per document and records search calls.
type memChunkRepo struct {
	mu      sync.RWMutex
	chunks  map[string][]*model.Chunk   // documentID -> chunks
	vectors map[string][]float32        // chunkID -> embedding
	results []*model.RankedResult       // canned search answer
	listErr error

	lastSearchTopK    int
	lastSearchFilters repository.SearchFilters
	lastSearchVector  []float32
}

func newMemChunkRepo() *memChunkRepo {
	return &memChunkRepo{
		chunks:  make(map[string][]*model.Chunk),
		vectors: make(map[string][]float32),
	}
}

func (m *memChunkRepo) ReplaceForDocument(ctx context.Context, tx repository.Tx, documentID string, chunks []*model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.chunks[documentID] {
		delete(m.vectors, old.ID)
	}
	cp := make([]*model.Chunk, len(chunks))
	for i, c := range chunks {
		d := *c
		cp[i] = &d
	}
	m.chunks[documentID] = cp
	return nil
}

func (m *memChunkRepo) ListByDocument(ctx context.Context, tx repository.Tx, documentID string) ([]*model.Chunk, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Chunk, len(m.chunks[documentID]))
	for i, c := range m.chunks[documentID] {
		d := *c
		out[i] = &d
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (m *memChunkRepo) UpdateEmbeddings(ctx context.Context, tx repository.Tx, vectors map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, vec := range vectors {
		m.vectors[id] = vec
	}
	return nil
}

func (m *memChunkRepo) Search(ctx context.Context, vector []float32, filters repository.SearchFilters, topK int) ([]*model.RankedResult, error) {
	m.mu.Lock()
	m.lastSearchTopK = topK
	m.lastSearchFilters = filters
	m.lastSearchVector = vector
	m.mu.Unlock()
	if topK < len(m.results) {
		return m.results[:topK], nil
	}
	return m.results, nil
}

// memJobRepo backs a real queue.Queue in tests. Claim ordering matches the
// SQL: priority desc, then scheduled_at asc.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.Job)}
}

func (m *memJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
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
		if best == nil || j.Priority > best.Priority ||
			(j.Priority == best.Priority && j.ScheduledAt.Before(best.ScheduledAt)) {
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
			id, err := jobDocumentID(j)
			if err == nil && id == documentID {
				return true, nil
			}
		}
	}
	return false, nil
}

func jobDocumentID(j *model.Job) (string, error) {
	return queue.DocumentIDOf(j)
}

// memStore is an in-memory FileStore.
type memStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[storageKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Save(ctx context.Context, storageKey string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[storageKey] = data
	return nil
}

// fakeParser returns canned blocks/chunks and records inputs.
type fakeParser struct {
	result   *model.ParseResult
	parseErr error
	chunks   []*model.Chunk
}

func (f *fakeParser) Parse(ctx context.Context, r io.Reader, declaredType string) (*model.ParseResult, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	io.Copy(io.Discard, r)
	return f.result, nil
}

func (f *fakeParser) Chunk(doc *model.Document, res *model.ParseResult) []*model.Chunk {
	return f.chunks
}

// fakeEmbedder produces index-stamped vectors; failures points to an error
// returned before any vectors.
type fakeEmbedder struct {
	mu       sync.Mutex
	embedErr error
	calls    [][]string
	dim      int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, adapter.Usage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, texts)
	f.mu.Unlock()
	if f.embedErr != nil {
		return nil, adapter.Usage{}, f.embedErr
	}
	dim := f.dim
	if dim <= 0 {
		dim = 4
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, dim)
		vec[0] = float32(i + 1)
		out[i] = vec
	}
	return out, adapter.Usage{PromptTokens: 5 * len(texts), TotalTokens: 5 * len(texts)}, nil
}

func (f *fakeEmbedder) Dimension() int { return 4 }
func (f *fakeEmbedder) Model() string  { return "fake-model" }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeCache is a map-backed QueryVectorCache.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]float32
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]float32)}
}

func (f *fakeCache) Get(ctx context.Context, model, query string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[model+":"+query], nil
}

func (f *fakeCache) Store(ctx context.Context, model, query string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[model+":"+query] = vector
	return nil
}
