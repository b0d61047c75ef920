package model

import (
	"time"

	"github.com/google/uuid"
)

type ChunkType string

const (
	ChunkTypeText    ChunkType = "text"
	ChunkTypeTable   ChunkType = "table"
	ChunkTypeFormula ChunkType = "formula"
	ChunkTypeImage   ChunkType = "image"
)

// Chunk is the smallest retrievable unit of document content. The parser
// creates chunks; the embedding generator writes the vector exactly once.
// Ordinals are contiguous and strictly increasing per document, from 0.
type Chunk struct {
	ID         string
	DocumentID string
	ProjectID  string
	Ordinal    int
	Content    string
	Type       ChunkType
	Page       *int   // page-oriented sources
	Sheet      string // spreadsheet sources
	CellRef    string // originating cell reference, e.g. "B15"
	Metadata   map[string]string
	TokenCount int
	CreatedAt  time.Time
}

func NewChunk(documentID, projectID string, ordinal int, content string, typ ChunkType) *Chunk {
	return &Chunk{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		ProjectID:  projectID,
		Ordinal:    ordinal,
		Content:    content,
		Type:       typ,
		CreatedAt:  time.Now(),
	}
}

// RankedResult is one similarity-search hit, scored by cosine similarity.
type RankedResult struct {
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId"`
	Preview    string  `json:"contentPreview"`
	Score      float64 `json:"score"`
}
