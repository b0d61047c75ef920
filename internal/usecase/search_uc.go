package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/infra/metrics"
)

// QueryVectorCache memoizes query embeddings between searches. A nil cache
// disables memoization.
type QueryVectorCache interface {
	Get(ctx context.Context, model, query string) ([]float32, error)
	Store(ctx context.Context, model, query string, vector []float32) error
}

// SearchUseCase ranks embedded chunks against a natural-language query.
type SearchUseCase struct {
	chunks   repository.ChunkRepository
	embedder adapter.Embedder
	cache    QueryVectorCache

	defaultTopK int
	maxTopK     int
	log         *zerolog.Logger
}

func NewSearchUseCase(
	chunks repository.ChunkRepository,
	embedder adapter.Embedder,
	cache QueryVectorCache,
	defaultTopK, maxTopK int,
	logger *zerolog.Logger,
) *SearchUseCase {
	ulog := logger.With().Str("component", "search_uc").Logger()
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	if maxTopK <= 0 {
		maxTopK = 100
	}
	return &SearchUseCase{
		chunks:      chunks,
		embedder:    embedder,
		cache:       cache,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		log:         &ulog,
	}
}

// Search embeds the query and returns up to topK results ranked by cosine
// similarity, best first. topK <= 0 uses the default; values over the cap
// are clamped.
func (uc *SearchUseCase) Search(ctx context.Context, query string, filters repository.SearchFilters, topK int) ([]*model.RankedResult, error) {
	if strings.TrimSpace(query) == "" {
		metrics.IncSearchRequest("invalid")
		return nil, fmt.Errorf("%w: empty query", domain.ErrValidation)
	}
	if topK <= 0 {
		topK = uc.defaultTopK
	}
	if topK > uc.maxTopK {
		topK = uc.maxTopK
	}

	start := time.Now()
	vector, err := uc.queryVector(ctx, query)
	if err != nil {
		metrics.IncSearchRequest("error")
		return nil, err
	}

	results, err := uc.chunks.Search(ctx, vector, filters, topK)
	if err != nil {
		metrics.IncSearchRequest("error")
		return nil, err
	}

	metrics.IncSearchRequest("ok")
	metrics.ObserveSearchLatency(time.Since(start).Seconds())
	uc.log.Debug().Int("top_k", topK).Int("results", len(results)).
		Dur("duration", time.Since(start)).Msg("search served")
	return results, nil
}

func (uc *SearchUseCase) queryVector(ctx context.Context, query string) ([]float32, error) {
	if uc.cache != nil {
		vec, err := uc.cache.Get(ctx, uc.embedder.Model(), query)
		if err != nil {
			uc.log.Warn().Err(err).Msg("query cache read failed")
		} else if vec != nil {
			metrics.IncSearchCache(true)
			return vec, nil
		}
	}
	metrics.IncSearchCache(false)

	vectors, _, err := uc.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := vectors[0]

	if uc.cache != nil {
		if err := uc.cache.Store(ctx, uc.embedder.Model(), query, vec); err != nil {
			uc.log.Warn().Err(err).Msg("query cache write failed")
		}
	}
	return vec, nil
}
