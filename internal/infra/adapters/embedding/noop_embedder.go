package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"document-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Embedder = (*NoopEmbedder)(nil)

// NoopEmbedder implements adapter.Embedder for local/dev runs without an API
// key. Vectors are derived deterministically from the input text, so repeated
// runs and similarity queries behave consistently.
type NoopEmbedder struct {
	dimension int
}

func NewNoopEmbedder(dimension int) *NoopEmbedder {
	if dimension <= 0 {
		dimension = 3072
	}
	return &NoopEmbedder{dimension: dimension}
}

func (n *NoopEmbedder) Model() string  { return "noop-embedder" }
func (n *NoopEmbedder) Dimension() int { return n.dimension }

func (n *NoopEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, adapter.Usage, error) {
	var usage adapter.Usage
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, usage, err
		}
		out[i] = n.vectorFor(t)
		usage.PromptTokens += (len(t) + 3) / 4
	}
	usage.TotalTokens = usage.PromptTokens
	return out, usage, nil
}

// vectorFor expands a sha256 of the text into a unit-norm vector.
func (n *NoopEmbedder) vectorFor(text string) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, n.dimension)
	var norm float64

	state := seed
	for i := 0; i < n.dimension; i++ {
		word := i % 8
		if i > 0 && word == 0 {
			state = sha256.Sum256(state[:])
		}
		bits := binary.BigEndian.Uint32(state[word*4 : word*4+4])
		v := float64(int32(bits)) / math.MaxInt32
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
