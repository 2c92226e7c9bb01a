package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Retrying retries busy-time fetches with exponential backoff. Fetches are
// read-only so repeating them is safe; committers are never wrapped.
type Retrying struct {
	next     BusyProvider
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

func NewRetrying(next BusyProvider, attempts int, backoff time.Duration, logger zerolog.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{next: next, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *Retrying) BusyIntervals(ctx context.Context, ownerID string, start, end time.Time) ([]BusyInterval, error) {
	wait := r.backoff
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		busy, err := r.next.BusyIntervals(ctx, ownerID, start, end)
		if err == nil {
			return busy, nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidSpan) || ctx.Err() != nil || attempt == r.attempts {
			break
		}

		r.logger.Warn().Err(err).
			Str("owner_id", ownerID).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("busy fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return nil, lastErr
}
