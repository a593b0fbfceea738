package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cuongbtq/partimer-be/internal/geo"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// scoredWorker is a candidate together with its ranking inputs.
type scoredWorker struct {
	worker     domain.Worker
	score      float64
	distanceKm float64
}

// FindCandidates returns the workers eligible to receive a lead for job, in
// store enumeration order.
func (s *Service) FindCandidates(ctx context.Context, job *domain.Job) ([]domain.Worker, error) {
	var candidates []domain.Worker
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		candidates, err = s.findCandidates(ctx, tx, job)
		return err
	})
	return candidates, err
}

func (s *Service) findCandidates(ctx context.Context, tx Tx, job *domain.Job) ([]domain.Worker, error) {
	workers, err := tx.ListActiveWorkersInCity(ctx, job.City)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}

	potential := make([]domain.Worker, 0, len(workers))
	for _, w := range workers {
		if passesProfileFilters(&w, job) {
			potential = append(potential, w)
		}
	}
	if len(potential) == 0 {
		return nil, nil
	}

	matched, err := tx.MatchedWorkerIDs(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing matches: %w", err)
	}

	ids := make([]int64, 0, len(potential))
	for _, w := range potential {
		ids = append(ids, w.ID)
	}
	slots, err := tx.ActiveAvailability(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}

	candidates := make([]domain.Worker, 0, len(potential))
	for _, w := range potential {
		if _, ok := matched[w.ID]; ok {
			continue
		}

		available, err := IsAvailable(job, slots[w.ID])
		if err != nil {
			return nil, fmt.Errorf("availability check for worker %d: %w", w.ID, err)
		}
		if available {
			candidates = append(candidates, w)
		}
	}

	return candidates, nil
}

// passesProfileFilters applies the status, city, age, gender and radius rules.
func passesProfileFilters(w *domain.Worker, job *domain.Job) bool {
	if w.Status != domain.WorkerStatusActive || w.City != job.City {
		return false
	}

	if job.MinAge != nil && *job.MinAge > 0 {
		if w.Age == nil || *w.Age < *job.MinAge {
			return false
		}
	}

	if job.GenderPreference != "" && job.GenderPreference != "any" && w.Gender != job.GenderPreference {
		return false
	}

	if job.HasLocation() && w.HasLocation() {
		d := geo.Distance(*job.Latitude, *job.Longitude, *w.Latitude, *w.Longitude)
		if d > min(job.MaxRadiusKm, w.MaxCommuteKm) {
			return false
		}
	}

	return true
}

// GenerateMatches scores and ranks the candidates for job and stores the top
// leads as PENDING matches in a single transaction. maxMatches <= 0 uses the
// configured default. job is refreshed with the stored status and counter.
func (s *Service) GenerateMatches(ctx context.Context, job *domain.Job, maxMatches int) (int, error) {
	var (
		created []domain.JobMatch
		locked  *domain.Job
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		locked, err = tx.LockJob(ctx, job.ID)
		if err != nil {
			return err
		}
		created, err = s.generate(ctx, tx, locked, maxMatches)
		return err
	})
	if err != nil {
		return 0, err
	}

	*job = *locked
	s.afterGenerate(ctx, job, created)
	return len(created), nil
}

// TriggerMatching runs a matching pass for the job with the given id.
func (s *Service) TriggerMatching(ctx context.Context, jobID int64, maxMatches int) (*domain.MatchResult, error) {
	var (
		created []domain.JobMatch
		job     *domain.Job
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		job, err = tx.LockJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.Status.IsMatchable() {
			return domain.InvalidStatef("job status must be open or matching, current: %s", job.Status)
		}
		created, err = s.generate(ctx, tx, job, maxMatches)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterGenerate(ctx, job, created)
	return &domain.MatchResult{
		JobID:          job.ID,
		MatchesCreated: len(created),
		JobStatus:      job.Status,
	}, nil
}

// generate ranks candidates and inserts matches. job is updated in place.
func (s *Service) generate(ctx context.Context, tx Tx, job *domain.Job, maxMatches int) ([]domain.JobMatch, error) {
	candidates, err := s.findCandidates(ctx, tx, job)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := s.rank(job, candidates)

	if maxMatches <= 0 {
		maxMatches = s.cfg.MaxMatches
	}
	limit := min(maxMatches, job.WorkersNeeded*s.cfg.LeadMultiplier)
	if limit < len(ranked) {
		ranked = ranked[:max(limit, 0)]
	}

	now := s.now()
	deadline := now.Add(time.Duration(job.ResponseDeadlineHours) * time.Hour)

	created := make([]domain.JobMatch, 0, len(ranked))
	for _, c := range ranked {
		m := domain.JobMatch{
			JobID:            job.ID,
			WorkerID:         c.worker.ID,
			MatchScore:       c.score,
			DistanceKm:       geo.Round(c.distanceKm, distanceDecimalPlaces),
			Status:           domain.MatchStatusPending,
			SentAt:           now,
			ResponseDeadline: deadline,
			LeadPrice:        s.cfg.LeadPrice,
		}

		inserted, err := tx.InsertMatch(ctx, &m)
		if err != nil {
			return nil, fmt.Errorf("failed to insert match for worker %d: %w", c.worker.ID, err)
		}
		if !inserted {
			s.logger.Warn("Match already exists, skipping",
				slog.Int64("job_id", job.ID),
				slog.Int64("worker_id", c.worker.ID),
			)
			continue
		}
		created = append(created, m)
	}

	if len(created) > 0 {
		if err := tx.UpdateJobMatching(ctx, job.ID, domain.JobStatusMatching, len(created)); err != nil {
			return nil, fmt.Errorf("failed to update job: %w", err)
		}
		job.Status = domain.JobStatusMatching
		job.WorkersMatched = len(created)
	}

	return created, nil
}

// rank scores every candidate and orders them by score, highest first.
// Equal scores keep their enumeration order.
func (s *Service) rank(job *domain.Job, candidates []domain.Worker) []scoredWorker {
	scored := make([]scoredWorker, 0, len(candidates))
	for _, w := range candidates {
		distance := s.cfg.FallbackDistanceKm
		if job.HasLocation() && w.HasLocation() {
			distance = geo.Distance(*job.Latitude, *job.Longitude, *w.Latitude, *w.Longitude)
		}

		skill := SkillMatch(w.Skills, job.RequiredSkills)
		scored = append(scored, scoredWorker{
			worker:     w,
			score:      MatchScore(&w, job, distance, skill),
			distanceKm: distance,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored
}

func (s *Service) afterGenerate(ctx context.Context, job *domain.Job, created []domain.JobMatch) {
	s.logger.Info("Matching run completed",
		slog.Int64("job_id", job.ID),
		slog.Int("matches_created", len(created)),
		slog.String("job_status", string(job.Status)),
	)
	if len(created) == 0 {
		return
	}

	workerIDs := make([]int64, len(created))
	for i, m := range created {
		workerIDs[i] = m.WorkerID
	}
	s.publish(ctx, EventMatchesCreated, map[string]any{
		"type":       EventMatchesCreated,
		"job_id":     job.ID,
		"worker_ids": workerIDs,
		"count":      len(created),
	})
}

// publish sends an event when a Notifier is configured. Failures are logged only.
func (s *Service) publish(ctx context.Context, channel string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishJSON(ctx, channel, payload); err != nil {
		s.logger.Warn("Failed to publish event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
