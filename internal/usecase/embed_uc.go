package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/infra/worker"
	"document-ai-pipeline/internal/queue"
)

var _ worker.Handler = (*EmbedUseCase)(nil)

// EmbedUseCase handles generate-embeddings jobs. The document's chunk set is
// embedded as one unit: any provider failure fails the whole job and the
// queue's retry re-embeds everything, so no document is left half-embedded.
type EmbedUseCase struct {
	docs     repository.DocumentRepository
	chunks   repository.ChunkRepository
	embedder adapter.Embedder
	log      *zerolog.Logger
}

func NewEmbedUseCase(
	docs repository.DocumentRepository,
	chunks repository.ChunkRepository,
	embedder adapter.Embedder,
	logger *zerolog.Logger,
) *EmbedUseCase {
	ulog := logger.With().Str("component", "embed_uc").Logger()
	return &EmbedUseCase{docs: docs, chunks: chunks, embedder: embedder, log: &ulog}
}

func (uc *EmbedUseCase) Queue() string { return model.QueueGenerateEmbeddings }

func (uc *EmbedUseCase) Execute(ctx context.Context, job *model.Job) (worker.Finalize, error) {
	docID, err := queue.DocumentIDOf(job)
	if err != nil {
		return nil, err
	}

	doc, err := uc.docs.FindByID(ctx, nil, docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: document %s no longer exists", domain.ErrValidation, docID)
		}
		return nil, err
	}

	if err := uc.docs.UpdateStatus(ctx, nil, doc.ID, model.DocumentStatusEmbedding, ""); err != nil {
		return nil, err
	}

	chunks, err := uc.chunks.ListByDocument(ctx, nil, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		uc.log.Warn().Str("document_id", doc.ID).Msg("no chunks to embed")
		return func(ctx context.Context, tx repository.Tx) error {
			return uc.docs.UpdateStatus(ctx, tx, doc.ID, model.DocumentStatusEmbedded, "")
		}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, usage, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks",
			domain.ErrTransientProvider, len(vectors), len(chunks))
	}

	byChunk := make(map[string][]float32, len(chunks))
	for i, c := range chunks {
		byChunk[c.ID] = vectors[i]
	}

	uc.log.Info().Str("document_id", doc.ID).Int("chunks", len(chunks)).
		Str("model", uc.embedder.Model()).Int("total_tokens", usage.TotalTokens).
		Msg("embeddings generated")

	return func(ctx context.Context, tx repository.Tx) error {
		if err := uc.chunks.UpdateEmbeddings(ctx, tx, byChunk); err != nil {
			return err
		}
		return uc.docs.UpdateStatus(ctx, tx, doc.ID, model.DocumentStatusEmbedded, "")
	}, nil
}

func (uc *EmbedUseCase) OnFailure(ctx context.Context, job *model.Job, jobErr error) {
	docID, err := queue.DocumentIDOf(job)
	if err != nil {
		uc.log.Error().Str("job_id", job.ID).Err(err).Msg("failed job has no document id")
		return
	}
	if err := uc.docs.UpdateStatus(ctx, nil, docID, model.DocumentStatusEmbeddingFailed, jobErr.Error()); err != nil {
		uc.log.Error().Str("document_id", docID).Err(err).Msg("could not record embedding failure")
	}
}
