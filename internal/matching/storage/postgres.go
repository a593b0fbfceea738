// Package storage persists workers, jobs and matches for the matching engine.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/partimer-be/internal/matching"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const jobColumns = `
	id, employer_id, title, city, latitude, longitude,
	COALESCE(work_days, '') AS work_days, work_hours_start, work_hours_end,
	COALESCE(required_skills, '') AS required_skills, min_age,
	COALESCE(gender_preference, '') AS gender_preference,
	max_radius_km, response_deadline_hours, workers_needed, workers_matched,
	status, published_at, created_at, updated_at`

const workerColumns = `
	id, full_name, age, COALESCE(gender, '') AS gender, city, latitude, longitude,
	max_commute_km, COALESCE(skills, '') AS skills, experience_years,
	reliability_score, status, total_jobs_accepted, total_jobs_rejected,
	created_at, updated_at`

const matchColumns = `
	id, job_id, worker_id, match_score, distance_km, status, sent_at,
	response_deadline, responded_at, COALESCE(worker_response, '') AS worker_response,
	lead_price, is_unlocked, created_at, updated_at`

// PostgresStore handles all database operations of the matching engine
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// InTx runs fn inside a database transaction, committing when fn returns nil.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx matching.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback transaction",
				slog.String("error", rbErr.Error()),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetJob retrieves a job by its ID
func (s *PostgresStore) GetJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	var job domain.Job
	err := s.db.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("job %d", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// PublishJob moves a DRAFT job to OPEN using optimistic locking on its status
func (s *PostgresStore) PublishJob(ctx context.Context, jobID int64, at time.Time) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, published_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.JobStatusOpen, at, jobID, domain.JobStatusDraft)
	if err == nil {
		s.logger.Info("Job published", slog.Int64("job_id", jobID))
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to publish job: %w", err)
	}

	current, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return nil, domain.InvalidStatef("job is already %s", current.Status)
}

// ExpirePendingMatches moves overdue PENDING matches to EXPIRED in one statement
func (s *PostgresStore) ExpirePendingMatches(ctx context.Context, now time.Time) ([]domain.JobMatch, error) {
	query := `
		UPDATE job_matches
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND response_deadline < $3
		RETURNING ` + matchColumns

	var expired []domain.JobMatch
	if err := s.db.SelectContext(ctx, &expired, query, domain.MatchStatusExpired, domain.MatchStatusPending, now); err != nil {
		return nil, fmt.Errorf("failed to expire matches: %w", err)
	}
	return expired, nil
}

// ListMatchesByJob lists matches of a job, newest first
func (s *PostgresStore) ListMatchesByJob(ctx context.Context, jobID int64, status domain.MatchStatus) ([]domain.JobMatch, error) {
	return s.listMatches(ctx, "job_id", jobID, status)
}

// ListMatchesByWorker lists matches sent to a worker, newest first
func (s *PostgresStore) ListMatchesByWorker(ctx context.Context, workerID int64, status domain.MatchStatus) ([]domain.JobMatch, error) {
	return s.listMatches(ctx, "worker_id", workerID, status)
}

func (s *PostgresStore) listMatches(ctx context.Context, column string, id int64, status domain.MatchStatus) ([]domain.JobMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM job_matches WHERE ` + column + ` = $1`
	args := []interface{}{id}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY sent_at DESC, id DESC"

	matches := make([]domain.JobMatch, 0)
	if err := s.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

// LockJob takes a row lock on the job so concurrent runs for it serialize
func (t *postgresTx) LockJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	var job domain.Job
	err := t.tx.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("job %d", jobID)
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}
	return &job, nil
}

func (t *postgresTx) ListActiveWorkersInCity(ctx context.Context, city string) ([]domain.Worker, error) {
	workers := make([]domain.Worker, 0)
	query := `SELECT ` + workerColumns + ` FROM workers WHERE status = $1 AND city = $2 ORDER BY id`
	if err := t.tx.SelectContext(ctx, &workers, query, domain.WorkerStatusActive, city); err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return workers, nil
}

func (t *postgresTx) MatchedWorkerIDs(ctx context.Context, jobID int64) (map[int64]struct{}, error) {
	var ids []int64
	if err := t.tx.SelectContext(ctx, &ids, `SELECT worker_id FROM job_matches WHERE job_id = $1`, jobID); err != nil {
		return nil, fmt.Errorf("failed to list matched workers: %w", err)
	}

	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (t *postgresTx) ActiveAvailability(ctx context.Context, workerIDs []int64) (map[int64][]domain.Availability, error) {
	query := `
		SELECT id, worker_id, day_of_week, start_time, end_time, is_active, created_at
		FROM worker_availability
		WHERE is_active AND worker_id = ANY($1)
		ORDER BY worker_id, id`

	var slots []domain.Availability
	if err := t.tx.SelectContext(ctx, &slots, query, pq.Array(workerIDs)); err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}

	out := make(map[int64][]domain.Availability)
	for _, a := range slots {
		out[a.WorkerID] = append(out[a.WorkerID], a)
	}
	return out, nil
}

// InsertMatch relies on the (job_id, worker_id) unique constraint to drop duplicates
func (t *postgresTx) InsertMatch(ctx context.Context, m *domain.JobMatch) (bool, error) {
	query := `
		INSERT INTO job_matches (
			job_id, worker_id, match_score, distance_km,
			status, sent_at, response_deadline, lead_price
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
		ON CONFLICT (job_id, worker_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		m.JobID,
		m.WorkerID,
		m.MatchScore,
		m.DistanceKm,
		m.Status,
		m.SentAt,
		m.ResponseDeadline,
		m.LeadPrice,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert match: %w", err)
	}
	return true, nil
}

func (t *postgresTx) UpdateJobMatching(ctx context.Context, jobID int64, status domain.JobStatus, workersMatched int) error {
	query := `
		UPDATE jobs
		SET status = $1, workers_matched = $2, updated_at = NOW()
		WHERE id = $3`

	if _, err := t.tx.ExecContext(ctx, query, status, workersMatched, jobID); err != nil {
		return fmt.Errorf("failed to update job matching state: %w", err)
	}
	return nil
}

func (t *postgresTx) LockMatch(ctx context.Context, matchID, workerID int64) (*domain.JobMatch, error) {
	var m domain.JobMatch
	query := `SELECT ` + matchColumns + ` FROM job_matches WHERE id = $1 AND worker_id = $2 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &m, query, matchID, workerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("job offer %d", matchID)
		}
		return nil, fmt.Errorf("failed to lock match: %w", err)
	}
	return &m, nil
}

func (t *postgresTx) SetMatchStatus(ctx context.Context, matchID int64, status domain.MatchStatus, response string, at time.Time) error {
	query := `
		UPDATE job_matches
		SET status = $1,
		    worker_response = COALESCE(NULLIF($2::text, ''), worker_response),
		    responded_at = CASE WHEN $2::text <> '' THEN $3 ELSE responded_at END,
		    updated_at = NOW()
		WHERE id = $4`

	if _, err := t.tx.ExecContext(ctx, query, status, response, at, matchID); err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return nil
}

func (t *postgresTx) IncrementWorkerResponses(ctx context.Context, workerID int64, accepted bool) error {
	column := "total_jobs_rejected"
	if accepted {
		column = "total_jobs_accepted"
	}

	query := `UPDATE workers SET ` + column + ` = ` + column + ` + 1, updated_at = NOW() WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, workerID); err != nil {
		return fmt.Errorf("failed to update worker counters: %w", err)
	}
	return nil
}

var (
	_ matching.Store = (*PostgresStore)(nil)
	_ matching.Tx    = (*postgresTx)(nil)
)
