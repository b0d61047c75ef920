package embedding

import (
	"context"

	"document-ai-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Embedder = (*limitedEmbedder)(nil)

// limitedEmbedder bounds concurrent provider calls across all workers with a
// semaphore, so a large document backlog cannot stampede the API.
type limitedEmbedder struct {
	inner adapter.Embedder
	sem   chan struct{}
}

func NewLimitedEmbedder(inner adapter.Embedder, maxConcurrent int) adapter.Embedder {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedEmbedder{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, adapter.Usage, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, adapter.Usage{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Embed(ctx, texts)
}

func (l *limitedEmbedder) Dimension() int { return l.inner.Dimension() }

func (l *limitedEmbedder) Model() string { return l.inner.Model() }
