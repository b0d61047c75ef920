package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/queue"
)

func parseJobFor(t *testing.T, documentID string) *model.Job {
	t.Helper()
	body, err := queue.EncodePayload(model.QueueParseDocument, queue.ParsePayload{DocumentID: documentID})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return model.NewJob(model.QueueParseDocument, body, 0, time.Time{}, 3)
}

func TestParseUseCaseHappyPath(t *testing.T) {
	docs := newMemDocRepo()
	chunks := newMemChunkRepo()
	store := newMemStore()
	log := zerolog.Nop()

	doc := model.NewDocument("proj-1", "budget.xlsx", "xlsx", "proj-1/budget.xlsx")
	docs.Insert(context.Background(), nil, doc)
	store.Save(context.Background(), doc.StorageKey, strings.NewReader("file bytes"))

	parsed := []*model.Chunk{
		model.NewChunk(doc.ID, doc.ProjectID, 0, "first", model.ChunkTypeText),
		model.NewChunk(doc.ID, doc.ProjectID, 1, "second", model.ChunkTypeTable),
	}
	parser := &fakeParser{result: &model.ParseResult{}, chunks: parsed}

	uc := NewParseUseCase(docs, chunks, store, parser, &log)

	fin, err := uc.Execute(context.Background(), parseJobFor(t, doc.ID))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if docs.status(doc.ID) != model.DocumentStatusParsing {
		t.Errorf("status during execute = %q, want parsing", docs.status(doc.ID))
	}

	if err := fin(context.Background(), nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if docs.status(doc.ID) != model.DocumentStatusParsed {
		t.Errorf("status = %q, want parsed", docs.status(doc.ID))
	}
	got, _ := chunks.ListByDocument(context.Background(), nil, doc.ID)
	if len(got) != 2 {
		t.Fatalf("chunks stored = %d, want 2", len(got))
	}
}

func TestParseUseCaseReplacesChunksOnReparse(t *testing.T) {
	docs := newMemDocRepo()
	chunks := newMemChunkRepo()
	store := newMemStore()
	log := zerolog.Nop()

	doc := model.NewDocument("proj-1", "doc.pdf", "pdf", "k")
	docs.Insert(context.Background(), nil, doc)
	store.Save(context.Background(), "k", strings.NewReader("x"))

	stale := []*model.Chunk{model.NewChunk(doc.ID, doc.ProjectID, 0, "stale", model.ChunkTypeText)}
	chunks.ReplaceForDocument(context.Background(), nil, doc.ID, stale)

	fresh := []*model.Chunk{model.NewChunk(doc.ID, doc.ProjectID, 0, "fresh", model.ChunkTypeText)}
	parser := &fakeParser{result: &model.ParseResult{}, chunks: fresh}
	uc := NewParseUseCase(docs, chunks, store, parser, &log)

	fin, err := uc.Execute(context.Background(), parseJobFor(t, doc.ID))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := fin(context.Background(), nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, _ := chunks.ListByDocument(context.Background(), nil, doc.ID)
	if len(got) != 1 || got[0].Content != "fresh" {
		t.Fatalf("chunks = %+v, want single fresh chunk", got)
	}
}

func TestParseUseCaseUnsupportedFormatSurfaces(t *testing.T) {
	docs := newMemDocRepo()
	store := newMemStore()
	log := zerolog.Nop()

	doc := model.NewDocument("proj-1", "notes.md", "text/markdown", "k")
	docs.Insert(context.Background(), nil, doc)
	store.Save(context.Background(), "k", strings.NewReader("# notes"))

	parser := &fakeParser{parseErr: fmt.Errorf("%w: text/markdown", domain.ErrUnsupportedFormat)}
	uc := NewParseUseCase(docs, newMemChunkRepo(), store, parser, &log)

	_, err := uc.Execute(context.Background(), parseJobFor(t, doc.ID))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if domain.Retryable(err) {
		t.Error("unsupported format must not be retryable")
	}
}

func TestParseUseCaseMissingDocumentIsPermanent(t *testing.T) {
	log := zerolog.Nop()
	uc := NewParseUseCase(newMemDocRepo(), newMemChunkRepo(), newMemStore(), &fakeParser{}, &log)

	_, err := uc.Execute(context.Background(), parseJobFor(t, "no-such-doc"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestParseUseCaseOnFailureRecordsStatus(t *testing.T) {
	docs := newMemDocRepo()
	log := zerolog.Nop()

	doc := model.NewDocument("proj-1", "bad.pdf", "pdf", "k")
	docs.Insert(context.Background(), nil, doc)

	uc := NewParseUseCase(docs, newMemChunkRepo(), newMemStore(), &fakeParser{}, &log)
	uc.OnFailure(context.Background(), parseJobFor(t, doc.ID), errors.New("pdftotext: exit status 1"))

	got, _ := docs.FindByID(context.Background(), nil, doc.ID)
	if got.Status != model.DocumentStatusParseFailed {
		t.Errorf("status = %q, want parse_failed", got.Status)
	}
	if got.Error == "" {
		t.Error("failure message not recorded on document")
	}
}
