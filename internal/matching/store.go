package matching

import (
	"context"
	"time"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// Tx is the transactional view of the store used by one unit of work.
// Implementations must release all locks when the enclosing InTx returns.
type Tx interface {
	// LockJob loads a job and holds a row lock on it until the transaction ends.
	LockJob(ctx context.Context, jobID int64) (*domain.Job, error)
	// ListActiveWorkersInCity returns ACTIVE workers whose home city is city.
	ListActiveWorkersInCity(ctx context.Context, city string) ([]domain.Worker, error)
	// MatchedWorkerIDs returns every worker that already has a match for the job.
	MatchedWorkerIDs(ctx context.Context, jobID int64) (map[int64]struct{}, error)
	// ActiveAvailability returns active slots grouped by worker.
	ActiveAvailability(ctx context.Context, workerIDs []int64) (map[int64][]domain.Availability, error)
	// InsertMatch stores m and reports false when a match for the same
	// job/worker pair already exists.
	InsertMatch(ctx context.Context, m *domain.JobMatch) (bool, error)
	// UpdateJobMatching sets the job status and its workers_matched counter.
	UpdateJobMatching(ctx context.Context, jobID int64, status domain.JobStatus, workersMatched int) error

	// LockMatch loads a match owned by workerID and locks it.
	LockMatch(ctx context.Context, matchID, workerID int64) (*domain.JobMatch, error)
	// SetMatchStatus moves a match to status, recording the worker's response when given.
	SetMatchStatus(ctx context.Context, matchID int64, status domain.MatchStatus, response string, at time.Time) error
	// IncrementWorkerResponses bumps the accepted or rejected counter of a worker.
	IncrementWorkerResponses(ctx context.Context, workerID int64, accepted bool) error
}

// Store is the persistence collaborator of the matching engine.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetJob(ctx context.Context, jobID int64) (*domain.Job, error)
	// PublishJob moves a DRAFT job to OPEN.
	PublishJob(ctx context.Context, jobID int64, at time.Time) (*domain.Job, error)
	// ExpirePendingMatches moves every PENDING match whose deadline is before
	// now to EXPIRED and returns the rows it changed.
	ExpirePendingMatches(ctx context.Context, now time.Time) ([]domain.JobMatch, error)
	ListMatchesByJob(ctx context.Context, jobID int64, status domain.MatchStatus) ([]domain.JobMatch, error)
	ListMatchesByWorker(ctx context.Context, workerID int64, status domain.MatchStatus) ([]domain.JobMatch, error)
}

// Notifier publishes match lifecycle events. Delivery is best-effort.
type Notifier interface {
	PublishJSON(ctx context.Context, channel string, payload any) error
}
