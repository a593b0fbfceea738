package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// processRequest runs matching for one request. Requests for missing or
// closed jobs are dropped, store failures are marked retryable.
func (w *Worker) processRequest(ctx context.Context, msg *domain.MatchMessage) error {
	req := msg.Request

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	maxMatches := req.MaxMatches
	if maxMatches == 0 {
		maxMatches = w.maxMatches
	}

	w.logger.Info("Processing matching request",
		slog.Int64("job_id", req.JobID),
		slog.Int("max_matches", maxMatches),
	)

	result, err := w.matcher.TriggerMatching(ctx, req.JobID, maxMatches)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidState):
			w.logger.Warn("Skipping matching request",
				slog.Int64("job_id", req.JobID),
				slog.String("reason", err.Error()),
			)
			return nil
		case errors.As(err, &verr):
			return err
		default:
			return domain.NewRetryableError(err)
		}
	}

	w.logger.Info("Matching request completed",
		slog.Int64("job_id", result.JobID),
		slog.Int("matches_created", result.MatchesCreated),
		slog.String("job_status", string(result.JobStatus)),
	)
	return nil
}
