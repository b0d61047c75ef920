package adapter

import (
	"context"
	"io"

	"document-ai-pipeline/internal/domain/model"
)

// DocumentParser turns raw file bytes into ordered, typed content blocks and
// sizes them into chunks. Parsing is all-or-nothing per document.
type DocumentParser interface {
	Parse(ctx context.Context, r io.Reader, declaredType string) (*model.ParseResult, error)
	Chunk(doc *model.Document, res *model.ParseResult) []*model.Chunk
}
