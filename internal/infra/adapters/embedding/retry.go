package embedding

import (
	"context"
	"errors"
	"time"

	"document-ai-pipeline/internal/domain"
)

// retryConfig shapes the exponential backoff applied to transient provider
// failures. Validation failures are never retried.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// retryWithBackoff runs fn, sleeping baseDelay, 2*baseDelay, ... capped at
// maxDelay, between attempts. Only errors marked ErrTransientProvider are
// retried; anything else surfaces immediately.
func retryWithBackoff[T any](ctx context.Context, cfg retryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := cfg.baseDelay

	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrTransientProvider) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == cfg.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}
	}

	return zero, errors.Join(domain.ErrRetryExhausted, lastErr)
}
