package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

type documentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *documentRepo {
	return &documentRepo{pool: pool}
}

func (r *documentRepo) Insert(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	const q = `
INSERT INTO documents (id, project_id, name, media_type, storage_key, status, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := execSQL(ctx, r.pool, tx, q,
		doc.ID, doc.ProjectID, doc.Name, doc.MediaType, doc.StorageKey,
		doc.Status, doc.Error, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (r *documentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	const q = `
SELECT id, project_id, name, media_type, storage_key, status, error, created_at, updated_at
FROM documents WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var d model.Document
	var status string
	err = row.Scan(&d.ID, &d.ProjectID, &d.Name, &d.MediaType, &d.StorageKey,
		&status, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	return &d, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.DocumentStatus, errMsg string) error {
	if !status.Failed() {
		errMsg = ""
	}
	const q = `
UPDATE documents SET status = $2, error = $3, updated_at = $4 WHERE id = $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, status, errMsg, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
