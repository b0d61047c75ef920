package model

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusParsing   DocumentStatus = "parsing"
	DocumentStatusParsed    DocumentStatus = "parsed"
	DocumentStatusEmbedding DocumentStatus = "embedding"
	DocumentStatusEmbedded  DocumentStatus = "embedded"
	DocumentStatusAnalyzing DocumentStatus = "analyzing"
	DocumentStatusAnalyzed  DocumentStatus = "analyzed"

	DocumentStatusParseFailed     DocumentStatus = "parse_failed"
	DocumentStatusEmbeddingFailed DocumentStatus = "embedding_failed"
)

func (s DocumentStatus) Failed() bool {
	return s == DocumentStatusParseFailed || s == DocumentStatusEmbeddingFailed
}

// Document is the owning record of uploaded content. The pipeline only
// touches Status and Error; everything else is written once at registration.
type Document struct {
	ID         string
	ProjectID  string
	Name       string
	MediaType  string
	StorageKey string
	Status     DocumentStatus
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewDocument(projectID, name, mediaType, storageKey string) *Document {
	now := time.Now()
	return &Document{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Name:       name,
		MediaType:  mediaType,
		StorageKey: storageKey,
		Status:     DocumentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
