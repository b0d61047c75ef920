package repository

import (
	"context"

	"document-ai-pipeline/internal/domain/model"
)

type DocumentRepository interface {
	Insert(ctx context.Context, tx Tx, doc *model.Document) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Document, error)

	// UpdateStatus moves the document's processing status; errMsg is only
	// stored for the failure variants and cleared otherwise.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.DocumentStatus, errMsg string) error
}
