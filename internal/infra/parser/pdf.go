package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/infra/metrics"
)

// parsePDF extracts per-page text via pdftotext. Pages that yield no text are
// assumed to be scanned images and go through the OCR path. An OCR failure
// fails the whole parse: a document is committed with all of its pages or not
// at all, and the error stays retryable since the CLI may recover.
func (s *Service) parsePDF(ctx context.Context, path string) (*model.ParseResult, error) {
	stdout, stderr, err := s.runner.Run(ctx, s.cfg.Pdftotext,
		"-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftotext: %v: %s",
			domain.ErrCorruptDocument, err, truncate(string(stderr), 512))
	}

	// pdftotext terminates every page with a form feed
	pages := strings.Split(string(stdout), "\f")
	if len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	if len(pages) > s.cfg.MaxPages {
		return nil, fmt.Errorf("%w: %d pages exceeds limit %d",
			domain.ErrValidation, len(pages), s.cfg.MaxPages)
	}

	res := &model.ParseResult{Metadata: map[string]string{
		"pages": strconv.Itoa(len(pages)),
	}}

	for i, text := range pages {
		pageNum := i + 1
		if strings.TrimSpace(text) != "" {
			p := pageNum
			res.Blocks = append(res.Blocks, model.Block{
				Kind: model.BlockText,
				Text: text,
				Page: &p,
			})
			continue
		}

		ocrText, err := s.ocrPage(ctx, path, pageNum)
		if err != nil {
			return nil, fmt.Errorf("ocr page %d: %w", pageNum, err)
		}
		if strings.TrimSpace(ocrText) == "" {
			continue
		}
		p := pageNum
		res.Blocks = append(res.Blocks, model.Block{
			Kind: model.BlockImage,
			Text: ocrText,
			Page: &p,
		})
		metrics.IncOCRPage()
		s.log.Debug().Int("page", pageNum).Msg("page recovered via ocr")
	}

	return res, nil
}

// ocrPage renders a single page to PNG with pdftoppm and reads it back with
// tesseract. Everything lives in a per-call temp dir.
func (s *Service) ocrPage(ctx context.Context, path string, page int) (string, error) {
	dir, err := os.MkdirTemp("", "docpipe-ocr-")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pageArg := strconv.Itoa(page)
	prefix := filepath.Join(dir, "page")
	_, stderr, err := s.runner.Run(ctx, s.cfg.Pdftoppm,
		"-f", pageArg, "-l", pageArg, "-r", strconv.Itoa(s.cfg.OCRDPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(stderr), 512))
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(images) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}

	stdout, stderr, err := s.runner.Run(ctx, s.cfg.Tesseract, images[0], "stdout")
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(stderr), 512))
	}
	return string(stdout), nil
}
