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

var _ worker.Handler = (*ParseUseCase)(nil)

// ParseUseCase handles parse-document jobs: read the stored file, extract
// blocks, size them into chunks. The chunk writes and the document's parsed
// status land in the job's completion transaction, so a re-claimed job
// replaces its own output instead of duplicating it.
type ParseUseCase struct {
	docs   repository.DocumentRepository
	chunks repository.ChunkRepository
	store  adapter.FileStore
	parser adapter.DocumentParser
	log    *zerolog.Logger
}

func NewParseUseCase(
	docs repository.DocumentRepository,
	chunks repository.ChunkRepository,
	store adapter.FileStore,
	parser adapter.DocumentParser,
	logger *zerolog.Logger,
) *ParseUseCase {
	ulog := logger.With().Str("component", "parse_uc").Logger()
	return &ParseUseCase{docs: docs, chunks: chunks, store: store, parser: parser, log: &ulog}
}

func (uc *ParseUseCase) Queue() string { return model.QueueParseDocument }

func (uc *ParseUseCase) Execute(ctx context.Context, job *model.Job) (worker.Finalize, error) {
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

	if err := uc.docs.UpdateStatus(ctx, nil, doc.ID, model.DocumentStatusParsing, ""); err != nil {
		return nil, err
	}

	rc, err := uc.store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: stored file %q missing", domain.ErrCorruptDocument, doc.StorageKey)
		}
		return nil, err
	}
	defer rc.Close()

	res, err := uc.parser.Parse(ctx, rc, doc.MediaType)
	if err != nil {
		return nil, err
	}
	chunks := uc.parser.Chunk(doc, res)

	uc.log.Info().Str("document_id", doc.ID).
		Int("blocks", len(res.Blocks)).Int("chunks", len(chunks)).
		Int("tables", len(res.Tables)).Int("formulas", len(res.Formulas)).
		Msg("document parsed")

	return func(ctx context.Context, tx repository.Tx) error {
		if err := uc.chunks.ReplaceForDocument(ctx, tx, doc.ID, chunks); err != nil {
			return err
		}
		return uc.docs.UpdateStatus(ctx, tx, doc.ID, model.DocumentStatusParsed, "")
	}, nil
}

func (uc *ParseUseCase) OnFailure(ctx context.Context, job *model.Job, jobErr error) {
	docID, err := queue.DocumentIDOf(job)
	if err != nil {
		uc.log.Error().Str("job_id", job.ID).Err(err).Msg("failed job has no document id")
		return
	}
	if err := uc.docs.UpdateStatus(ctx, nil, docID, model.DocumentStatusParseFailed, jobErr.Error()); err != nil {
		uc.log.Error().Str("document_id", docID).Err(err).Msg("could not record parse failure")
	}
}
