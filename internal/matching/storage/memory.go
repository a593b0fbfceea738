package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/partimer-be/internal/matching"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// MemoryStore is an in-process Store. Transactions are serialized by a
// single mutex and applied to a copy of the data, so a failed unit of work
// leaves no trace.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

type memoryData struct {
	workers      map[int64]domain.Worker
	workerOrder  []int64
	jobs         map[int64]domain.Job
	availability []domain.Availability
	matches      []domain.JobMatch
	nextID       int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			workers: make(map[int64]domain.Worker),
			jobs:    make(map[int64]domain.Job),
			nextID:  1,
		},
	}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		workers:      make(map[int64]domain.Worker, len(d.workers)),
		workerOrder:  append([]int64(nil), d.workerOrder...),
		jobs:         make(map[int64]domain.Job, len(d.jobs)),
		availability: append([]domain.Availability(nil), d.availability...),
		matches:      append([]domain.JobMatch(nil), d.matches...),
		nextID:       d.nextID,
	}
	for k, v := range d.workers {
		c.workers[k] = v
	}
	for k, v := range d.jobs {
		c.jobs[k] = v
	}
	return c
}

func (d *memoryData) id() int64 {
	id := d.nextID
	d.nextID++
	return id
}

// PutWorker inserts or replaces a worker. A zero ID is assigned.
func (m *MemoryStore) PutWorker(w domain.Worker) domain.Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		w.ID = m.data.id()
	}
	if _, ok := m.data.workers[w.ID]; !ok {
		m.data.workerOrder = append(m.data.workerOrder, w.ID)
	}
	m.data.workers[w.ID] = w
	return w
}

// PutJob inserts or replaces a job. A zero ID is assigned.
func (m *MemoryStore) PutJob(j domain.Job) domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.ID == 0 {
		j.ID = m.data.id()
	}
	m.data.jobs[j.ID] = j
	return j
}

// AddAvailability stores a slot for a worker.
func (m *MemoryStore) AddAvailability(a domain.Availability) domain.Availability {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.data.id()
	m.data.availability = append(m.data.availability, a)
	return a
}

// PutMatch stores a match as-is, bypassing the uniqueness check.
func (m *MemoryStore) PutMatch(jm domain.JobMatch) domain.JobMatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	jm.ID = m.data.id()
	m.data.matches = append(m.data.matches, jm)
	return jm
}

// Matches returns a snapshot of all stored matches.
func (m *MemoryStore) Matches() []domain.JobMatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.JobMatch(nil), m.data.matches...)
}

// Worker returns a stored worker.
func (m *MemoryStore) Worker(id int64) (domain.Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.data.workers[id]
	return w, ok
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx matching.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.data.clone()
	if err := fn(&memoryTx{data: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data = staged
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, jobID int64) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.data.jobs[jobID]
	if !ok {
		return nil, domain.NotFoundf("job %d", jobID)
	}
	return &j, nil
}

func (m *MemoryStore) PublishJob(_ context.Context, jobID int64, at time.Time) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.data.jobs[jobID]
	if !ok {
		return nil, domain.NotFoundf("job %d", jobID)
	}
	if j.Status != domain.JobStatusDraft {
		return nil, domain.InvalidStatef("job is already %s", j.Status)
	}
	j.Status = domain.JobStatusOpen
	j.PublishedAt = &at
	j.UpdatedAt = at
	m.data.jobs[jobID] = j
	return &j, nil
}

func (m *MemoryStore) ExpirePendingMatches(_ context.Context, now time.Time) ([]domain.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []domain.JobMatch
	for i, jm := range m.data.matches {
		if jm.Status == domain.MatchStatusPending && jm.ResponseDeadline.Before(now) {
			jm.Status = domain.MatchStatusExpired
			jm.UpdatedAt = now
			m.data.matches[i] = jm
			expired = append(expired, jm)
		}
	}
	return expired, nil
}

func (m *MemoryStore) ListMatchesByJob(_ context.Context, jobID int64, status domain.MatchStatus) ([]domain.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.filterMatches(func(jm domain.JobMatch) bool {
		return jm.JobID == jobID && (status == "" || jm.Status == status)
	}), nil
}

func (m *MemoryStore) ListMatchesByWorker(_ context.Context, workerID int64, status domain.MatchStatus) ([]domain.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.filterMatches(func(jm domain.JobMatch) bool {
		return jm.WorkerID == workerID && (status == "" || jm.Status == status)
	}), nil
}

// filterMatches returns matching rows ordered by sent_at then id, newest first.
func (d *memoryData) filterMatches(keep func(domain.JobMatch) bool) []domain.JobMatch {
	out := make([]domain.JobMatch, 0)
	for _, jm := range d.matches {
		if keep(jm) {
			out = append(out, jm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.After(out[j].SentAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) LockJob(_ context.Context, jobID int64) (*domain.Job, error) {
	j, ok := t.data.jobs[jobID]
	if !ok {
		return nil, domain.NotFoundf("job %d", jobID)
	}
	return &j, nil
}

func (t *memoryTx) ListActiveWorkersInCity(_ context.Context, city string) ([]domain.Worker, error) {
	out := make([]domain.Worker, 0)
	for _, id := range t.data.workerOrder {
		w := t.data.workers[id]
		if w.Status == domain.WorkerStatusActive && w.City == city {
			out = append(out, w)
		}
	}
	return out, nil
}

func (t *memoryTx) MatchedWorkerIDs(_ context.Context, jobID int64) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	for _, jm := range t.data.matches {
		if jm.JobID == jobID {
			ids[jm.WorkerID] = struct{}{}
		}
	}
	return ids, nil
}

func (t *memoryTx) ActiveAvailability(_ context.Context, workerIDs []int64) (map[int64][]domain.Availability, error) {
	want := make(map[int64]struct{}, len(workerIDs))
	for _, id := range workerIDs {
		want[id] = struct{}{}
	}
	out := make(map[int64][]domain.Availability)
	for _, a := range t.data.availability {
		if _, ok := want[a.WorkerID]; ok && a.IsActive {
			out[a.WorkerID] = append(out[a.WorkerID], a)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertMatch(_ context.Context, jm *domain.JobMatch) (bool, error) {
	for _, existing := range t.data.matches {
		if existing.JobID == jm.JobID && existing.WorkerID == jm.WorkerID {
			return false, nil
		}
	}
	jm.ID = t.data.id()
	jm.CreatedAt = jm.SentAt
	jm.UpdatedAt = jm.SentAt
	t.data.matches = append(t.data.matches, *jm)
	return true, nil
}

func (t *memoryTx) UpdateJobMatching(_ context.Context, jobID int64, status domain.JobStatus, workersMatched int) error {
	j, ok := t.data.jobs[jobID]
	if !ok {
		return domain.NotFoundf("job %d", jobID)
	}
	j.Status = status
	j.WorkersMatched = workersMatched
	t.data.jobs[jobID] = j
	return nil
}

func (t *memoryTx) LockMatch(_ context.Context, matchID, workerID int64) (*domain.JobMatch, error) {
	for _, jm := range t.data.matches {
		if jm.ID == matchID && jm.WorkerID == workerID {
			return &jm, nil
		}
	}
	return nil, domain.NotFoundf("job offer %d", matchID)
}

func (t *memoryTx) SetMatchStatus(_ context.Context, matchID int64, status domain.MatchStatus, response string, at time.Time) error {
	for i, jm := range t.data.matches {
		if jm.ID != matchID {
			continue
		}
		jm.Status = status
		if response != "" {
			jm.WorkerResponse = response
			jm.RespondedAt = &at
		}
		jm.UpdatedAt = at
		t.data.matches[i] = jm
		return nil
	}
	return domain.NotFoundf("match %d", matchID)
}

func (t *memoryTx) IncrementWorkerResponses(_ context.Context, workerID int64, accepted bool) error {
	w, ok := t.data.workers[workerID]
	if !ok {
		return fmt.Errorf("worker %d: %w", workerID, domain.ErrNotFound)
	}
	if accepted {
		w.TotalAccepted++
	} else {
		w.TotalRejected++
	}
	t.data.workers[workerID] = w
	return nil
}

var (
	_ matching.Store = (*MemoryStore)(nil)
	_ matching.Tx    = (*memoryTx)(nil)
)
