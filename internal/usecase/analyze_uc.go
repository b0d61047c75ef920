package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/infra/worker"
	"document-ai-pipeline/internal/queue"
)

var _ worker.Handler = (*AnalyzeUseCase)(nil)

// AnalyzeUseCase is the terminal pipeline stage. It verifies the document's
// chunk inventory and settles the analyzed status; deeper analysis hangs off
// this stage later without touching the queue chain.
type AnalyzeUseCase struct {
	docs   repository.DocumentRepository
	chunks repository.ChunkRepository
	log    *zerolog.Logger
}

func NewAnalyzeUseCase(docs repository.DocumentRepository, chunks repository.ChunkRepository, logger *zerolog.Logger) *AnalyzeUseCase {
	ulog := logger.With().Str("component", "analyze_uc").Logger()
	return &AnalyzeUseCase{docs: docs, chunks: chunks, log: &ulog}
}

func (uc *AnalyzeUseCase) Queue() string { return model.QueueAnalyzeDocument }

func (uc *AnalyzeUseCase) Execute(ctx context.Context, job *model.Job) (worker.Finalize, error) {
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

	if err := uc.docs.UpdateStatus(ctx, nil, doc.ID, model.DocumentStatusAnalyzing, ""); err != nil {
		return nil, err
	}

	chunks, err := uc.chunks.ListByDocument(ctx, nil, doc.ID)
	if err != nil {
		return nil, err
	}

	perType := map[model.ChunkType]int{}
	tokens := 0
	for _, c := range chunks {
		perType[c.Type]++
		tokens += c.TokenCount
	}
	uc.log.Info().Str("document_id", doc.ID).
		Int("chunks", len(chunks)).Int("tokens", tokens).
		Int("tables", perType[model.ChunkTypeTable]).
		Int("formulas", perType[model.ChunkTypeFormula]).
		Msg("document analyzed")

	return func(ctx context.Context, tx repository.Tx) error {
		return uc.docs.UpdateStatus(ctx, tx, doc.ID, model.DocumentStatusAnalyzed, "")
	}, nil
}

func (uc *AnalyzeUseCase) OnFailure(ctx context.Context, job *model.Job, jobErr error) {
	// the document keeps its embedded status and stays searchable
	uc.log.Error().Str("job_id", job.ID).Err(jobErr).Msg("analysis failed permanently")
}
