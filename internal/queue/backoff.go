package queue

import "time"

// Backoff computes retry delays as a pure function of the retry count, so
// timing is unit-testable without real waiting.
type Backoff struct {
	Base time.Duration
}

// NextDelay returns base * 2^retryCount, non-decreasing in retryCount.
func (b Backoff) NextDelay(retryCount int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 20 {
		retryCount = 20 // avoid shift overflow; delays beyond this are academic
	}
	return base << uint(retryCount)
}
