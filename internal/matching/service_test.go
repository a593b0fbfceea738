package matching_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/partimer-be/internal/matching"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
	"github.com/cuongbtq/partimer-be/internal/matching/storage"
)

var testNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

const (
	klLat = 3.1390
	klLon = 101.6869
)

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PublishJSON(_ context.Context, channel string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, channel)
	return nil
}

func (n *recordingNotifier) Channels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newService(store matching.Store, opts ...matching.Option) *matching.Service {
	opts = append([]matching.Option{matching.WithClock(func() time.Time { return testNow })}, opts...)
	return matching.NewService(store, discardLogger(), matching.DefaultConfig(), opts...)
}

func openJob() domain.Job {
	return domain.Job{
		EmployerID:            1,
		Title:                 "Weekend cashier",
		City:                  "KL",
		Latitude:              ptr(klLat),
		Longitude:             ptr(klLon),
		WorkDays:              "monday,tuesday",
		WorkHoursStart:        "09:00",
		WorkHoursEnd:          "17:00",
		RequiredSkills:        "cashier,customer service",
		MaxRadiusKm:           10,
		ResponseDeadlineHours: 24,
		WorkersNeeded:         1,
		Status:                domain.JobStatusOpen,
	}
}

// activeWorker is placed northKm due north of the job site.
func activeWorker(name string, northKm float64) domain.Worker {
	return domain.Worker{
		FullName:         name,
		Age:              ptr(25),
		City:             "KL",
		Latitude:         ptr(klLat + northKm/111.195),
		Longitude:        ptr(klLon),
		MaxCommuteKm:     10,
		Skills:           "cashier,customer service",
		ExperienceYears:  4,
		ReliabilityScore: 8,
		Status:           domain.WorkerStatusActive,
	}
}

func mondayAvailability(store *storage.MemoryStore, workerID int64) {
	store.AddAvailability(domain.Availability{
		WorkerID:  workerID,
		DayOfWeek: domain.Monday,
		StartTime: "08:00",
		EndTime:   "18:00",
		IsActive:  true,
	})
}

func TestTriggerMatching_ReferenceCandidate(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())
	w := store.PutWorker(activeWorker("Aina", 3))
	mondayAvailability(store, w.ID)

	notifier := &recordingNotifier{}
	svc := newService(store, matching.WithNotifier(notifier))

	result, err := svc.TriggerMatching(context.Background(), job.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, job.ID, result.JobID)
	assert.Equal(t, 1, result.MatchesCreated)
	assert.Equal(t, domain.JobStatusMatching, result.JobStatus)

	matches := store.Matches()
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, w.ID, m.WorkerID)
	assert.InDelta(t, 0.800, m.MatchScore, 1e-9)
	assert.InDelta(t, 3.0, m.DistanceKm, 0.01)
	assert.Equal(t, domain.MatchStatusPending, m.Status)
	assert.Equal(t, testNow, m.SentAt)
	assert.Equal(t, testNow.Add(24*time.Hour), m.ResponseDeadline)
	assert.Equal(t, domain.DefaultLeadPrice, m.LeadPrice)

	stored, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusMatching, stored.Status)
	assert.Equal(t, 1, stored.WorkersMatched)

	assert.Equal(t, []string{matching.EventMatchesCreated}, notifier.Channels())
}

func TestFindCandidates_Filters(t *testing.T) {
	tests := []struct {
		name   string
		job    func(j *domain.Job)
		worker func(w *domain.Worker)
		slot   *domain.Availability
		want   bool
	}{
		{name: "eligible", want: true},
		{
			name:   "inactive worker",
			worker: func(w *domain.Worker) { w.Status = domain.WorkerStatusSuspended },
		},
		{
			name:   "other city",
			worker: func(w *domain.Worker) { w.City = "Penang" },
		},
		{
			name: "too young",
			job:  func(j *domain.Job) { j.MinAge = ptr(30) },
		},
		{
			name:   "unknown age with minimum",
			job:    func(j *domain.Job) { j.MinAge = ptr(18) },
			worker: func(w *domain.Worker) { w.Age = nil },
		},
		{
			name: "gender mismatch",
			job:  func(j *domain.Job) { j.GenderPreference = "female" },
			worker: func(w *domain.Worker) {
				w.Gender = "male"
			},
		},
		{
			name: "any gender",
			job:  func(j *domain.Job) { j.GenderPreference = "any" },
			worker: func(w *domain.Worker) {
				w.Gender = "male"
			},
			want: true,
		},
		{
			name:   "beyond commute",
			worker: func(w *domain.Worker) { w.MaxCommuteKm = 2 },
		},
		{
			name: "beyond radius",
			job:  func(j *domain.Job) { j.MaxRadiusKm = 2.5 },
		},
		{
			name: "worker without coordinates is not filtered by distance",
			worker: func(w *domain.Worker) {
				w.Latitude = nil
				w.Longitude = nil
				w.MaxCommuteKm = 1
			},
			want: true,
		},
		{
			name: "wednesday only",
			slot: &domain.Availability{DayOfWeek: domain.Wednesday, StartTime: "08:00", EndTime: "18:00", IsActive: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()

			j := openJob()
			if tt.job != nil {
				tt.job(&j)
			}
			job := store.PutJob(j)

			w := activeWorker("Ben", 3)
			if tt.worker != nil {
				tt.worker(&w)
			}
			w = store.PutWorker(w)

			if tt.slot != nil {
				slot := *tt.slot
				slot.WorkerID = w.ID
				store.AddAvailability(slot)
			} else {
				mondayAvailability(store, w.ID)
			}

			got, err := newService(store).FindCandidates(context.Background(), &job)
			require.NoError(t, err)
			if tt.want {
				require.Len(t, got, 1)
				assert.Equal(t, w.ID, got[0].ID)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFindCandidates_ExcludesAlreadyMatched(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())
	w := store.PutWorker(activeWorker("Chen", 1))
	mondayAvailability(store, w.ID)
	store.PutMatch(domain.JobMatch{JobID: job.ID, WorkerID: w.ID, Status: domain.MatchStatusRejected})

	got, err := newService(store).FindCandidates(context.Background(), &job)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateMatches_RanksByScore(t *testing.T) {
	store := storage.NewMemoryStore()
	job := openJob()
	job.RequiredSkills = "cashier"
	job = store.PutJob(job)

	// Enumerated first but scores lower: 0.4 + 0 + 0 + 0.2
	low := activeWorker("Low", 0)
	low.ReliabilityScore = 0
	low.ExperienceYears = 0
	low.Skills = "cashier"
	low = store.PutWorker(low)

	// 0.4 + 0.3 + 0 + 0.2
	high := activeWorker("High", 0)
	high.ReliabilityScore = 10
	high.ExperienceYears = 0
	high.Skills = "cashier"
	high = store.PutWorker(high)

	mondayAvailability(store, low.ID)
	mondayAvailability(store, high.ID)

	created, err := newService(store).GenerateMatches(context.Background(), &job, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, domain.JobStatusMatching, job.Status)
	assert.Equal(t, 2, job.WorkersMatched)

	matches := store.Matches()
	require.Len(t, matches, 2)
	assert.Equal(t, high.ID, matches[0].WorkerID)
	assert.InDelta(t, 0.9, matches[0].MatchScore, 1e-9)
	assert.Equal(t, low.ID, matches[1].WorkerID)
	assert.InDelta(t, 0.6, matches[1].MatchScore, 1e-9)
}

func TestGenerateMatches_Cap(t *testing.T) {
	tests := []struct {
		name          string
		workersNeeded int
		maxMatches    int
		want          int
	}{
		{name: "three leads per needed worker", workersNeeded: 1, maxMatches: 10, want: 3},
		{name: "max matches is tighter", workersNeeded: 2, maxMatches: 2, want: 2},
		{name: "fewer candidates than cap", workersNeeded: 3, maxMatches: 10, want: 5},
		{name: "default max matches", workersNeeded: 1, maxMatches: 0, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			j := openJob()
			j.WorkersNeeded = tt.workersNeeded
			job := store.PutJob(j)
			for i := 0; i < 5; i++ {
				w := store.PutWorker(activeWorker("W", float64(i)))
				mondayAvailability(store, w.ID)
			}

			created, err := newService(store).GenerateMatches(context.Background(), &job, tt.maxMatches)
			require.NoError(t, err)
			assert.Equal(t, tt.want, created)
			assert.Len(t, store.Matches(), tt.want)
		})
	}
}

func TestGenerateMatches_NoDuplicatesAcrossRuns(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())
	for i := 0; i < 5; i++ {
		w := store.PutWorker(activeWorker("W", float64(i)))
		mondayAvailability(store, w.ID)
	}
	svc := newService(store)

	first, err := svc.GenerateMatches(context.Background(), &job, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, first)

	second, err := svc.GenerateMatches(context.Background(), &job, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, second)
	assert.Equal(t, 2, job.WorkersMatched)

	third, err := svc.GenerateMatches(context.Background(), &job, 10)
	require.NoError(t, err)
	assert.Zero(t, third)

	seen := make(map[int64]bool)
	for _, m := range store.Matches() {
		assert.Equal(t, job.ID, m.JobID)
		assert.False(t, seen[m.WorkerID], "duplicate match for worker %d", m.WorkerID)
		seen[m.WorkerID] = true
	}
	assert.Len(t, seen, 5)
}

func TestTriggerMatching_NoCandidates(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())

	result, err := newService(store).TriggerMatching(context.Background(), job.ID, 10)
	require.NoError(t, err)
	assert.Zero(t, result.MatchesCreated)
	assert.Equal(t, domain.JobStatusOpen, result.JobStatus)

	stored, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, stored.Status)
	assert.Zero(t, stored.WorkersMatched)
}

func TestTriggerMatching_Errors(t *testing.T) {
	store := storage.NewMemoryStore()
	draft := openJob()
	draft.Status = domain.JobStatusDraft
	draft = store.PutJob(draft)

	filled := openJob()
	filled.Status = domain.JobStatusFilled
	filled = store.PutJob(filled)

	svc := newService(store)

	tests := []struct {
		name    string
		jobID   int64
		wantErr error
	}{
		{name: "unknown job", jobID: 9999, wantErr: domain.ErrNotFound},
		{name: "draft job", jobID: draft.ID, wantErr: domain.ErrInvalidState},
		{name: "filled job", jobID: filled.ID, wantErr: domain.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.TriggerMatching(context.Background(), tt.jobID, 10)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}
}

func TestTriggerMatching_MatchingJobCanRunAgain(t *testing.T) {
	store := storage.NewMemoryStore()
	j := openJob()
	j.Status = domain.JobStatusMatching
	job := store.PutJob(j)
	w := store.PutWorker(activeWorker("Dina", 2))
	mondayAvailability(store, w.ID)

	result, err := newService(store).TriggerMatching(context.Background(), job.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MatchesCreated)
}

func TestTriggerMatching_MalformedAvailabilityFails(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())
	w := store.PutWorker(activeWorker("Eli", 1))
	store.AddAvailability(domain.Availability{
		WorkerID:  w.ID,
		DayOfWeek: domain.Monday,
		StartTime: "late",
		EndTime:   "18:00",
		IsActive:  true,
	})

	_, err := newService(store).TriggerMatching(context.Background(), job.ID, 10)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, store.Matches())
}

// failingStore makes the n-th InsertMatch of a transaction fail.
type failingStore struct {
	*storage.MemoryStore
	failOn int
}

type failingTx struct {
	matching.Tx
	inserts int
	failOn  int
}

var errInsert = errors.New("connection reset")

func (s *failingStore) InTx(ctx context.Context, fn func(tx matching.Tx) error) error {
	return s.MemoryStore.InTx(ctx, func(tx matching.Tx) error {
		return fn(&failingTx{Tx: tx, failOn: s.failOn})
	})
}

func (t *failingTx) InsertMatch(ctx context.Context, m *domain.JobMatch) (bool, error) {
	t.inserts++
	if t.inserts == t.failOn {
		return false, errInsert
	}
	return t.Tx.InsertMatch(ctx, m)
}

func TestTriggerMatching_IsAtomic(t *testing.T) {
	mem := storage.NewMemoryStore()
	job := mem.PutJob(openJob())
	for i := 0; i < 3; i++ {
		w := mem.PutWorker(activeWorker("W", float64(i)))
		mondayAvailability(mem, w.ID)
	}

	svc := newService(&failingStore{MemoryStore: mem, failOn: 2})

	_, err := svc.TriggerMatching(context.Background(), job.ID, 10)
	require.ErrorIs(t, err, errInsert)

	assert.Empty(t, mem.Matches())
	stored, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, stored.Status)
	assert.Zero(t, stored.WorkersMatched)
}

func TestTriggerMatching_ConcurrentRunsDoNotDuplicate(t *testing.T) {
	store := storage.NewMemoryStore()
	j := openJob()
	j.WorkersNeeded = 10
	job := store.PutJob(j)
	for i := 0; i < 6; i++ {
		w := store.PutWorker(activeWorker("W", float64(i)))
		mondayAvailability(store, w.ID)
	}
	svc := newService(store)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TriggerMatching(context.Background(), job.ID, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.Matches(), 6)
}

func TestExpireStaleMatches(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())

	stale := store.PutMatch(domain.JobMatch{
		JobID: job.ID, WorkerID: 1, Status: domain.MatchStatusPending,
		SentAt: testNow.Add(-48 * time.Hour), ResponseDeadline: testNow.Add(-time.Hour),
	})
	fresh := store.PutMatch(domain.JobMatch{
		JobID: job.ID, WorkerID: 2, Status: domain.MatchStatusPending,
		SentAt: testNow, ResponseDeadline: testNow.Add(time.Hour),
	})
	answered := store.PutMatch(domain.JobMatch{
		JobID: job.ID, WorkerID: 3, Status: domain.MatchStatusAccepted,
		SentAt: testNow.Add(-48 * time.Hour), ResponseDeadline: testNow.Add(-time.Hour),
	})

	notifier := &recordingNotifier{}
	svc := newService(store, matching.WithNotifier(notifier))

	n, err := svc.ExpireStaleMatches(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := svc.ExpireNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)

	status := make(map[int64]domain.MatchStatus)
	for _, m := range store.Matches() {
		status[m.ID] = m.Status
	}
	assert.Equal(t, domain.MatchStatusExpired, status[stale.ID])
	assert.Equal(t, domain.MatchStatusPending, status[fresh.ID])
	assert.Equal(t, domain.MatchStatusAccepted, status[answered.ID])

	stored, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, stored.Status)
	assert.Equal(t, []string{matching.EventMatchesExpired}, notifier.Channels())
}

func TestRespondToMatch(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		clock        time.Time
		initial      domain.MatchStatus
		wantStatus   domain.MatchStatus
		wantErr      error
		wantAccepted int
		wantRejected int
	}{
		{
			name:         "accept",
			response:     matching.ResponseYes,
			clock:        testNow,
			initial:      domain.MatchStatusPending,
			wantStatus:   domain.MatchStatusAccepted,
			wantAccepted: 1,
		},
		{
			name:         "reject",
			response:     matching.ResponseNo,
			clock:        testNow,
			initial:      domain.MatchStatusPending,
			wantStatus:   domain.MatchStatusRejected,
			wantRejected: 1,
		},
		{
			name:       "after deadline",
			response:   matching.ResponseYes,
			clock:      testNow.Add(25 * time.Hour),
			initial:    domain.MatchStatusPending,
			wantStatus: domain.MatchStatusExpired,
			wantErr:    domain.ErrDeadlinePassed,
		},
		{
			name:       "already answered",
			response:   matching.ResponseNo,
			clock:      testNow,
			initial:    domain.MatchStatusAccepted,
			wantStatus: domain.MatchStatusAccepted,
			wantErr:    domain.ErrAlreadyResponded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			job := store.PutJob(openJob())
			w := store.PutWorker(activeWorker("Farah", 1))
			m := store.PutMatch(domain.JobMatch{
				JobID: job.ID, WorkerID: w.ID, Status: tt.initial,
				SentAt: testNow, ResponseDeadline: testNow.Add(24 * time.Hour),
			})

			clock := tt.clock
			svc := matching.NewService(store, discardLogger(), matching.DefaultConfig(),
				matching.WithClock(func() time.Time { return clock }))

			got, err := svc.RespondToMatch(context.Background(), w.ID, m.ID, tt.response)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, got.Status)
				assert.Equal(t, tt.response, got.WorkerResponse)
				require.NotNil(t, got.RespondedAt)
			}

			stored := store.Matches()
			require.Len(t, stored, 1)
			assert.Equal(t, tt.wantStatus, stored[0].Status)

			worker, ok := store.Worker(w.ID)
			require.True(t, ok)
			assert.Equal(t, tt.wantAccepted, worker.TotalAccepted)
			assert.Equal(t, tt.wantRejected, worker.TotalRejected)
		})
	}
}

func TestRespondToMatch_InvalidInput(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())
	m := store.PutMatch(domain.JobMatch{
		JobID: job.ID, WorkerID: 7, Status: domain.MatchStatusPending,
		SentAt: testNow, ResponseDeadline: testNow.Add(time.Hour),
	})
	svc := newService(store)

	t.Run("bad response", func(t *testing.T) {
		_, err := svc.RespondToMatch(context.Background(), 7, m.ID, "maybe")
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("offer of another worker", func(t *testing.T) {
		_, err := svc.RespondToMatch(context.Background(), 8, m.ID, matching.ResponseYes)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPublishJob(t *testing.T) {
	store := storage.NewMemoryStore()
	draft := openJob()
	draft.Status = domain.JobStatusDraft
	job := store.PutJob(draft)
	svc := newService(store)

	published, err := svc.PublishJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, testNow, *published.PublishedAt)

	_, err = svc.PublishJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.PublishJob(context.Background(), 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListJobMatches(t *testing.T) {
	store := storage.NewMemoryStore()
	job := store.PutJob(openJob())
	store.PutMatch(domain.JobMatch{JobID: job.ID, WorkerID: 1, Status: domain.MatchStatusAccepted, SentAt: testNow})
	store.PutMatch(domain.JobMatch{JobID: job.ID, WorkerID: 2, Status: domain.MatchStatusPending, SentAt: testNow})
	store.PutMatch(domain.JobMatch{JobID: job.ID + 1, WorkerID: 1, Status: domain.MatchStatusAccepted, SentAt: testNow})
	svc := newService(store)

	accepted, err := svc.ListJobMatches(context.Background(), job.ID, domain.MatchStatusAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, int64(1), accepted[0].WorkerID)

	all, err := svc.ListJobMatches(context.Background(), job.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ListJobMatches(context.Background(), 777, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	offers, err := svc.ListWorkerOffers(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}
