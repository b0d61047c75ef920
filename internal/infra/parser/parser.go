package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/infra/metrics"
)

var _ adapter.DocumentParser = (*Service)(nil)

type format string

const (
	formatXLSX format = "xlsx"
	formatPDF  format = "pdf"
	formatDOCX format = "docx"
)

// detectFormat accepts either a media type or a bare extension.
func detectFormat(declared string) (format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(declared), ".")) {
	case "xlsx", "xlsm",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel.sheet.macroenabled.12":
		return formatXLSX, nil
	case "pdf", "application/pdf":
		return formatPDF, nil
	case "docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return formatDOCX, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, declared)
}

// Service extracts typed content blocks from stored files. Parsing is
// all-or-nothing: any extraction error discards the whole result.
type Service struct {
	cfg     config.ParserConfig
	runner  Runner
	chunker *Chunker
	log     *zerolog.Logger
}

func NewService(cfg config.ParserConfig, logger *zerolog.Logger) *Service {
	plog := logger.With().Str("component", "parser").Logger()
	counter := NewTokenCounter(cfg.Encoding, &plog)
	return &Service{
		cfg:     cfg,
		runner:  execRunner{log: &plog},
		chunker: NewChunker(cfg.MinTokens, cfg.MaxTokens, counter),
		log:     &plog,
	}
}

// NewServiceWithRunner is used by tests to stub external commands.
func NewServiceWithRunner(cfg config.ParserConfig, runner Runner, counter TokenCounter, logger *zerolog.Logger) *Service {
	plog := logger.With().Str("component", "parser").Logger()
	return &Service{
		cfg:     cfg,
		runner:  runner,
		chunker: NewChunker(cfg.MinTokens, cfg.MaxTokens, counter),
		log:     &plog,
	}
}

// Parse copies the stream to a transient local file, extracts blocks for the
// declared format and removes the file on every exit path.
func (s *Service) Parse(ctx context.Context, r io.Reader, declaredType string) (*model.ParseResult, error) {
	f, err := detectFormat(declaredType)
	if err != nil {
		metrics.IncDocumentParsed(declaredType, "error")
		return nil, err
	}

	tmp, err := os.CreateTemp("", "docpipe-*."+string(f))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		metrics.IncDocumentParsed(string(f), "error")
		return nil, fmt.Errorf("%w: copy source: %v", domain.ErrCorruptDocument, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	var res *model.ParseResult
	switch f {
	case formatXLSX:
		res, err = s.parseWorkbook(tmpPath)
	case formatPDF:
		res, err = s.parsePDF(ctx, tmpPath)
	case formatDOCX:
		res, err = s.parseDOCX(tmpPath)
	}
	if err != nil {
		metrics.IncDocumentParsed(string(f), "error")
		return nil, err
	}

	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
	res.Metadata["format"] = string(f)
	metrics.IncDocumentParsed(string(f), "ok")
	return res, nil
}

// Chunk sizes a parse result into persistable chunks for the document.
func (s *Service) Chunk(doc *model.Document, res *model.ParseResult) []*model.Chunk {
	chunks := s.chunker.Chunk(doc, res)
	for _, c := range chunks {
		metrics.AddChunksCreated(string(c.Type), 1)
	}
	return chunks
}
