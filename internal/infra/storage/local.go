package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.FileStore = (*LocalStore)(nil)

// LocalStore serves document bytes from a directory tree. Storage keys are
// slash-separated relative paths; anything escaping the root is rejected.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) path(storageKey string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: bad storage key %q", domain.ErrValidation, storageKey)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %q", domain.ErrNotFound, storageKey)
		}
		return nil, fmt.Errorf("open %q: %w", storageKey, err)
	}
	return f, nil
}

// Save writes an uploaded stream under the key, creating parent directories.
func (s *LocalStore) Save(ctx context.Context, storageKey string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(storageKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create dir for %q: %w", storageKey, err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create %q: %w", storageKey, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("write %q: %w", storageKey, err)
	}
	return f.Close()
}
