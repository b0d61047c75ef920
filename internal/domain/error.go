package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Pipeline error taxonomy. The job dispatcher classifies handler
	// failures against these to pick the retry/fail transition.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptDocument   = errors.New("corrupt or unreadable document")
	ErrValidation        = errors.New("validation failed")
	ErrTransientProvider = errors.New("transient provider error")
	ErrRetryExhausted    = errors.New("retry limit exhausted")
	ErrJobExpired        = errors.New("job exceeded active time-to-live")
	ErrJobNotRequeueable = errors.New("job is not in a requeueable state")
	ErrProcessingActive  = errors.New("document already has a queued or active job")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// Retryable reports whether a handler error should put the job back on the
// queue with backoff. Validation and corrupt-input failures are permanent:
// retrying the same bytes cannot succeed. ErrRetryExhausted means a handler
// already ran its own retry loop against the provider; queueing the job
// again would multiply those attempts, so it fails outright.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrCorruptDocument),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrRetryExhausted):
		return false
	}
	return true
}
