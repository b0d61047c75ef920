package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pgvector/pgvector-go"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.ChunkRepository = (*chunkRepo)(nil)

type chunkRepo struct {
	pool *pgxpool.Pool
}

func NewChunkRepo(pool *pgxpool.Pool) *chunkRepo {
	return &chunkRepo{pool: pool}
}

func (r *chunkRepo) ReplaceForDocument(ctx context.Context, tx repository.Tx, documentID string, chunks []*model.Chunk) error {
	if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM chunks WHERE document_id = $1;`, documentID); err != nil {
		return err
	}

	const q = `
INSERT INTO chunks (id, document_id, project_id, ordinal, content, chunk_type,
                    page, sheet, cell_ref, metadata, token_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		_, err = execSQL(ctx, r.pool, tx, q,
			c.ID, c.DocumentID, c.ProjectID, c.Ordinal, c.Content, c.Type,
			c.Page, c.Sheet, c.CellRef, meta, c.TokenCount, c.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *chunkRepo) ListByDocument(ctx context.Context, tx repository.Tx, documentID string) ([]*model.Chunk, error) {
	const q = `
SELECT id, document_id, project_id, ordinal, content, chunk_type,
       page, sheet, cell_ref, metadata, token_count, created_at
FROM chunks WHERE document_id = $1 ORDER BY ordinal;`

	rows, err := pickRows(ctx, r.pool, tx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Chunk
	for rows.Next() {
		var c model.Chunk
		var typ string
		var meta []byte
		err := rows.Scan(&c.ID, &c.DocumentID, &c.ProjectID, &c.Ordinal, &c.Content, &typ,
			&c.Page, &c.Sheet, &c.CellRef, &meta, &c.TokenCount, &c.CreatedAt)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		c.Type = model.ChunkType(typ)
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &c.Metadata)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpdateEmbeddings writes one vector per chunk id. Callers pass a transaction
// so the whole batch commits with the job, or not at all.
func (r *chunkRepo) UpdateEmbeddings(ctx context.Context, tx repository.Tx, vectors map[string][]float32) error {
	const q = `UPDATE chunks SET embedding = $2 WHERE id = $1;`

	for id, vec := range vectors {
		tag, err := execSQL(ctx, r.pool, tx, q, id, pgvector.NewVector(vec))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
		}
	}
	return nil
}

func (r *chunkRepo) Search(ctx context.Context, vector []float32, filters repository.SearchFilters, topK int) ([]*model.RankedResult, error) {
	// Filters restrict the candidate set before ranking and created_at/id
	// break ties deterministically. The halfvec cast matches the expression
	// the hnsw index is built over; without it the planner falls back to a
	// sequential scan.
	const q = `
SELECT id, document_id, left(content, 240),
       1 - (embedding::halfvec(3072) <=> $1::halfvec(3072)) AS score
FROM chunks
WHERE embedding IS NOT NULL
  AND ($2::uuid IS NULL OR project_id = $2::uuid)
  AND ($3::uuid IS NULL OR document_id = $3::uuid)
ORDER BY embedding::halfvec(3072) <=> $1::halfvec(3072) ASC, created_at DESC, id
LIMIT $4;`

	var projectID, documentID *string
	if filters.ProjectID != "" {
		projectID = &filters.ProjectID
	}
	if filters.DocumentID != "" {
		documentID = &filters.DocumentID
	}

	rows, err := pickRows(ctx, r.pool, nil, q, pgvector.NewVector(vector), projectID, documentID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RankedResult
	for rows.Next() {
		var res model.RankedResult
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.Preview, &res.Score); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}
