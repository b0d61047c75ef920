package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/ports/adapter"
	"document-ai-pipeline/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder produces embeddings via the OpenAI API. Inputs are batched
// under the provider's per-call maximum; rate limits and 5xx responses are
// retried with exponential backoff. The SDK's own retry is disabled so the
// backoff policy lives in one place.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
	maxBatch  int
	retry     retryConfig
	log       *zerolog.Logger
}

func NewOpenAIEmbedder(cfg config.EmbeddingsConfig, logger *zerolog.Logger) (*OpenAIEmbedder, error) {
	if cfg.OpenAIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	elog := logger.With().Str("component", "openai_embedder").Logger()
	return &OpenAIEmbedder{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		maxBatch:  cfg.MaxBatch,
		retry: retryConfig{
			maxRetries: cfg.MaxRetries,
			baseDelay:  cfg.RetryBase,
			maxDelay:   cfg.RetryMax,
		},
		log: &elog,
	}, nil
}

func (e *OpenAIEmbedder) Model() string  { return e.model }
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Embed returns one vector per input text, in input order. A failed batch
// fails the whole call; partial results are never returned.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, adapter.Usage, error) {
	var usage adapter.Usage
	if len(texts) == 0 {
		return nil, usage, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, usage, fmt.Errorf("%w: empty input text", domain.ErrValidation)
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.maxBatch {
		end := start + e.maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vectors, u, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, usage, err
		}
		out = append(out, vectors...)
		usage.Add(u)
	}
	return out, usage, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, adapter.Usage, error) {
	var usage adapter.Usage
	retried := false

	resp, err := retryWithBackoff(ctx, e.retry, func() (*openai.CreateEmbeddingResponse, error) {
		start := time.Now()
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model:          openai.EmbeddingModel(e.model),
			Dimensions:     openai.Int(int64(e.dimension)),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		})
		metrics.ObserveEmbeddingCall(e.model, int(time.Since(start).Milliseconds()), err == nil)
		if err != nil {
			classified := classifyProviderError(err)
			if errors.Is(classified, domain.ErrTransientProvider) {
				retried = true
				e.log.Warn().Int("batch_size", len(batch)).Err(err).
					Msg("transient embedding failure, will retry")
			}
			return nil, classified
		}
		return resp, nil
	})
	if err != nil {
		metrics.IncEmbeddingBatch("error")
		return nil, usage, err
	}

	if len(resp.Data) != len(batch) {
		metrics.IncEmbeddingBatch("error")
		return nil, usage, fmt.Errorf("%w: got %d embeddings for %d inputs",
			domain.ErrTransientProvider, len(resp.Data), len(batch))
	}

	vectors := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(batch) {
			metrics.IncEmbeddingBatch("error")
			return nil, usage, fmt.Errorf("%w: embedding index %d out of range",
				domain.ErrTransientProvider, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[int(d.Index)] = vec
	}

	usage.PromptTokens = int(resp.Usage.PromptTokens)
	usage.TotalTokens = int(resp.Usage.TotalTokens)
	metrics.AddEmbeddingTokens(e.model, usage.TotalTokens)
	if retried {
		metrics.IncEmbeddingBatch("retried")
	} else {
		metrics.IncEmbeddingBatch("ok")
	}
	return vectors, usage, nil
}

// classifyProviderError maps API failures onto the pipeline taxonomy:
// rate limits and server errors are transient, other 4xx are permanent.
func classifyProviderError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: openai http %d: %v", domain.ErrTransientProvider, apiErr.StatusCode, err)
		case apiErr.StatusCode >= 400:
			return fmt.Errorf("%w: openai http %d: %v", domain.ErrValidation, apiErr.StatusCode, err)
		}
	}
	// transport-level failures (timeouts, connection resets)
	return fmt.Errorf("%w: %v", domain.ErrTransientProvider, err)
}
