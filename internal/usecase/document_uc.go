package usecase

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/domain/ports/repository"
	"document-ai-pipeline/internal/queue"
)

// DocumentUseCase owns document registration and pipeline kickoff.
type DocumentUseCase struct {
	docs  repository.DocumentRepository
	store adapter.FileStore
	queue *queue.Queue
	log   *zerolog.Logger
}

func NewDocumentUseCase(docs repository.DocumentRepository, store adapter.FileStore, q *queue.Queue, logger *zerolog.Logger) *DocumentUseCase {
	ulog := logger.With().Str("component", "document_uc").Logger()
	return &DocumentUseCase{docs: docs, store: store, queue: q, log: &ulog}
}

// Register stores the uploaded bytes and creates the document record in
// pending state. Processing starts separately.
func (uc *DocumentUseCase) Register(ctx context.Context, projectID, name, mediaType string, r io.Reader) (*model.Document, error) {
	if projectID == "" || name == "" {
		return nil, fmt.Errorf("%w: projectId and name are required", domain.ErrValidation)
	}
	doc := model.NewDocument(projectID, name, mediaType, "")
	doc.StorageKey = path.Join(projectID, doc.ID, path.Base(name))

	if err := uc.store.Save(ctx, doc.StorageKey, r); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if err := uc.docs.Insert(ctx, nil, doc); err != nil {
		return nil, err
	}
	uc.log.Info().Str("document_id", doc.ID).Str("project_id", projectID).
		Str("media_type", mediaType).Msg("document registered")
	return doc, nil
}

// Get returns the document with its current processing status.
func (uc *DocumentUseCase) Get(ctx context.Context, id string) (*model.Document, error) {
	return uc.docs.FindByID(ctx, nil, id)
}

// StartProcessing enqueues the parse stage. A document with a queued or
// active job anywhere in the pipeline is rejected, keeping one writer per
// document.
func (uc *DocumentUseCase) StartProcessing(ctx context.Context, documentID string) (string, error) {
	doc, err := uc.docs.FindByID(ctx, nil, documentID)
	if err != nil {
		return "", err
	}

	busy, err := uc.queue.HasPending(ctx, model.PipelineQueues(), doc.ID)
	if err != nil {
		return "", err
	}
	if busy {
		return "", domain.ErrProcessingActive
	}

	jobID, err := uc.queue.Enqueue(ctx, nil, model.QueueParseDocument,
		queue.ParsePayload{DocumentID: doc.ID}, queue.Options{})
	if err != nil {
		return "", err
	}
	uc.log.Info().Str("document_id", doc.ID).Str("job_id", jobID).Msg("processing started")
	return jobID, nil
}
