package session

import (
	"context"
	"errors"
	"time"
)

// DefaultRevalidateInterval is how often RunRevalidation checks the session.
const DefaultRevalidateInterval = 5 * time.Minute

// RunRevalidation calls Revalidate every interval until ctx is cancelled or
// the store is closed. It blocks; run it in its own goroutine.
func (s *Store) RunRevalidation(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRevalidateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Revalidate(ctx); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				s.log.Debug(ctx, "revalidation skipped", "error", err)
			}
		}
	}
}
