package adapter

import "context"

// Usage is the approximate token spend of embedding calls, exposed for cost
// accounting. It is not persisted by this component.
type Usage struct {
	PromptTokens int
	TotalTokens  int
}

func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.TotalTokens += other.TotalTokens
}

// Embedder produces one fixed-dimension vector per input text, same order.
// Implementations batch inputs under the provider's per-call maximum and
// retry transient provider errors with backoff; validation errors fail
// immediately.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, Usage, error)
	Dimension() int
	Model() string
}
