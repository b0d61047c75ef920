package adapter

import (
	"context"
	"io"
)

// FileStore hands the parser the bytes behind a document's storage key and
// accepts uploads at registration. Retention and storage layout live outside
// the pipeline.
type FileStore interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Save(ctx context.Context, storageKey string, r io.Reader) error
}
