package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpireStaleMatches moves every PENDING match whose response deadline is
// before now to EXPIRED and returns how many were changed. Jobs are untouched.
func (s *Service) ExpireStaleMatches(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ExpirePendingMatches(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire matches: %w", err)
	}

	if len(expired) == 0 {
		s.logger.Debug("No stale matches to expire", slog.Time("now", now))
		return 0, nil
	}

	ids := make([]int64, len(expired))
	for i, m := range expired {
		ids[i] = m.ID
	}

	s.logger.Info("Expired stale matches",
		slog.Int("count", len(expired)),
		slog.Time("now", now),
	)
	s.publish(ctx, EventMatchesExpired, map[string]any{
		"type":      EventMatchesExpired,
		"match_ids": ids,
		"count":     len(expired),
	})

	return len(expired), nil
}

// ExpireNow runs ExpireStaleMatches against the service clock.
func (s *Service) ExpireNow(ctx context.Context) (int, error) {
	return s.ExpireStaleMatches(ctx, s.now())
}
