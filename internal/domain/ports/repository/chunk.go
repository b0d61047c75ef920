package repository

import (
	"context"

	"document-ai-pipeline/internal/domain/model"
)

// SearchFilters restrict the candidate set BEFORE ranking, so selective
// filters still return up to topK results.
type SearchFilters struct {
	ProjectID  string
	DocumentID string
}

type ChunkRepository interface {
	// ReplaceForDocument deletes any chunks of the document and inserts the
	// given set. Running it inside the parse job's completion transaction
	// makes re-claimed parse jobs idempotent.
	ReplaceForDocument(ctx context.Context, tx Tx, documentID string, chunks []*model.Chunk) error

	// ListByDocument returns chunks in ordinal order. Embeddings are not
	// loaded.
	ListByDocument(ctx context.Context, tx Tx, documentID string) ([]*model.Chunk, error)

	// UpdateEmbeddings writes one vector per chunk, matched by chunk ID.
	// Callers run it in a transaction so a document's batch lands whole or
	// not at all.
	UpdateEmbeddings(ctx context.Context, tx Tx, vectors map[string][]float32) error

	// Search ranks embedded chunks by cosine similarity to the query vector,
	// descending, ties broken by newest chunk first.
	Search(ctx context.Context, vector []float32, filters SearchFilters, topK int) ([]*model.RankedResult, error)
}
