package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// Worker responses to an offer.
const (
	ResponseYes = "yes"
	ResponseNo  = "no"
)

// RespondToMatch records a worker's yes/no answer to a pending offer.
// A response after the deadline moves the match to EXPIRED and returns
// ErrDeadlinePassed.
func (s *Service) RespondToMatch(ctx context.Context, workerID, matchID int64, response string) (*domain.JobMatch, error) {
	if response != ResponseYes && response != ResponseNo {
		return nil, &domain.ValidationError{Field: "response", Msg: "must be yes or no"}
	}

	var (
		match   *domain.JobMatch
		expired bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		match, err = tx.LockMatch(ctx, matchID, workerID)
		if err != nil {
			return err
		}

		if match.Status != domain.MatchStatusPending {
			return fmt.Errorf("%w: offer already %s", domain.ErrAlreadyResponded, match.Status)
		}

		now := s.now()
		if now.After(match.ResponseDeadline) {
			expired = true
			match.Status = domain.MatchStatusExpired
			return tx.SetMatchStatus(ctx, match.ID, domain.MatchStatusExpired, "", now)
		}

		next := domain.MatchStatusRejected
		if response == ResponseYes {
			next = domain.MatchStatusAccepted
		}
		if !match.Status.CanTransition(next) {
			return domain.InvalidStatef("transition %s -> %s is not allowed", match.Status, next)
		}

		if err := tx.SetMatchStatus(ctx, match.ID, next, response, now); err != nil {
			return err
		}
		if err := tx.IncrementWorkerResponses(ctx, workerID, next == domain.MatchStatusAccepted); err != nil {
			return err
		}

		match.Status = next
		match.WorkerResponse = response
		match.RespondedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.logger.Info("Response after deadline, match expired",
			slog.Int64("match_id", matchID),
			slog.Int64("worker_id", workerID),
		)
		return match, domain.ErrDeadlinePassed
	}

	s.publish(ctx, EventMatchResponded, map[string]any{
		"type":     EventMatchResponded,
		"match_id": match.ID,
		"job_id":   match.JobID,
		"status":   match.Status,
	})
	return match, nil
}

// PublishJob opens a DRAFT job for matching.
func (s *Service) PublishJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	return s.store.PublishJob(ctx, jobID, s.now())
}

// GetJob returns a job by id.
func (s *Service) GetJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// ListJobMatches returns the leads of a job filtered by status.
func (s *Service) ListJobMatches(ctx context.Context, jobID int64, status domain.MatchStatus) ([]domain.JobMatch, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListMatchesByJob(ctx, jobID, status)
}

// ListWorkerOffers returns the offers sent to a worker filtered by status.
// An empty status returns all offers.
func (s *Service) ListWorkerOffers(ctx context.Context, workerID int64, status domain.MatchStatus) ([]domain.JobMatch, error) {
	return s.store.ListMatchesByWorker(ctx, workerID, status)
}
