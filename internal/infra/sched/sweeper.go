package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/queue"
)

// Sweeper periodically expires jobs stuck in the active state past the TTL.
type Sweeper struct {
	interval time.Duration
	ttl      time.Duration
	queue    *queue.Queue
	log      *zerolog.Logger
}

func NewSweeper(interval, ttl time.Duration, q *queue.Queue, logger *zerolog.Logger) *Sweeper {
	slog := logger.With().Str("component", "sweeper").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{interval: interval, ttl: ttl, queue: q, log: &slog}
}

func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Dur("ttl", s.ttl).Msg("starting expiry sweeper")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("stopping expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.queue.SweepExpired(ctx, s.ttl); err != nil {
				s.log.Error().Err(err).Msg("sweep error")
			}
		}
	}
}
