package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMatcher struct {
	mu       sync.Mutex
	calls    []domain.MatchingRequest
	err      error
	expired  int
	sweeps   int
	sweepErr error
}

func (m *fakeMatcher) TriggerMatching(_ context.Context, jobID int64, maxMatches int) (*domain.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, domain.MatchingRequest{JobID: jobID, MaxMatches: maxMatches})
	if m.err != nil {
		return nil, m.err
	}
	return &domain.MatchResult{JobID: jobID, MatchesCreated: 1, JobStatus: domain.JobStatusMatching}, nil
}

func (m *fakeMatcher) ExpireNow(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	return m.expired, m.sweepErr
}

func (m *fakeMatcher) Calls() []domain.MatchingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MatchingRequest(nil), m.calls...)
}

type settlement struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeBroker struct {
	mu         sync.Mutex
	deliveries chan amqp.Delivery
	settled    []settlement
	qos        int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{deliveries: make(chan amqp.Delivery, 10)}
}

func (b *fakeBroker) Qos(n int) error {
	b.qos = n
	return nil
}

func (b *fakeBroker) Consume(string) (<-chan amqp.Delivery, error) {
	return b.deliveries, nil
}

func (b *fakeBroker) Ack(tag uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settled = append(b.settled, settlement{tag: tag, ack: true})
	return nil
}

func (b *fakeBroker) Nack(tag uint64, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settled = append(b.settled, settlement{tag: tag, requeue: requeue})
	return nil
}

// Ack, Nack and Reject make fakeBroker usable as a delivery Acknowledger
func (b *fakeBroker) acknowledger() amqp.Acknowledger { return (*deliveryAck)(b) }

type deliveryAck fakeBroker

func (a *deliveryAck) Ack(tag uint64, _ bool) error { return (*fakeBroker)(a).Ack(tag) }
func (a *deliveryAck) Nack(tag uint64, _ bool, requeue bool) error {
	return (*fakeBroker)(a).Nack(tag, requeue)
}
func (a *deliveryAck) Reject(tag uint64, requeue bool) error {
	return (*fakeBroker)(a).Nack(tag, requeue)
}

func (b *fakeBroker) Settled() []settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]settlement(nil), b.settled...)
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    domain.MatchingRequest
		wantErr string
	}{
		{name: "job only", body: `{"job_id": 42}`, want: domain.MatchingRequest{JobID: 42}},
		{name: "with max matches", body: `{"job_id": 7, "max_matches": 5}`, want: domain.MatchingRequest{JobID: 7, MaxMatches: 5}},
		{name: "malformed json", body: `{job_id}`, wantErr: "malformed message"},
		{name: "string id", body: `{"job_id": "abc"}`, wantErr: "malformed message"},
		{name: "missing id", body: `{}`, wantErr: "job_id"},
		{name: "negative max", body: `{"job_id": 1, "max_matches": -1}`, wantErr: "max_matches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRequest([]byte(tt.body))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldRequeue(t *testing.T) {
	assert.True(t, shouldRequeue(domain.NewRetryableError(errors.New("db down"))))
	assert.True(t, shouldRequeue(fmt.Errorf("wrapped: %w", domain.NewRetryableError(errors.New("db down")))))
	assert.False(t, shouldRequeue(&domain.ValidationError{Field: "time", Msg: "bad"}))
	assert.False(t, shouldRequeue(errors.New("unknown")))
}

func TestProcessRequest(t *testing.T) {
	tests := []struct {
		name          string
		matcherErr    error
		wantErr       bool
		wantRetryable bool
	}{
		{name: "success"},
		{name: "job not found is dropped", matcherErr: domain.NotFoundf("job 1")},
		{name: "closed job is dropped", matcherErr: domain.InvalidStatef("job status must be open or matching, current: filled")},
		{name: "bad data is not retried", matcherErr: &domain.ValidationError{Field: "time", Msg: "bad"}, wantErr: true},
		{name: "store failure is retried", matcherErr: errors.New("connection reset"), wantErr: true, wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher := &fakeMatcher{err: tt.matcherErr}
			w := NewWorker(&Config{Logger: testLogger(), Matcher: matcher, Broker: newFakeBroker(), MaxMatches: 10})

			err := w.processRequest(context.Background(), &domain.MatchMessage{Request: domain.MatchingRequest{JobID: 1}})
			if !tt.wantErr {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantRetryable, shouldRequeue(err))
			}
		})
	}
}

func TestProcessRequest_MaxMatches(t *testing.T) {
	matcher := &fakeMatcher{}
	w := NewWorker(&Config{Logger: testLogger(), Matcher: matcher, Broker: newFakeBroker(), MaxMatches: 10})

	require.NoError(t, w.processRequest(context.Background(), &domain.MatchMessage{Request: domain.MatchingRequest{JobID: 1}}))
	require.NoError(t, w.processRequest(context.Background(), &domain.MatchMessage{Request: domain.MatchingRequest{JobID: 2, MaxMatches: 4}}))

	calls := matcher.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 10, calls[0].MaxMatches)
	assert.Equal(t, 4, calls[1].MaxMatches)
}

func TestWorker_ConsumesAndSettles(t *testing.T) {
	broker := newFakeBroker()
	matcher := &fakeMatcher{}
	w := NewWorker(&Config{
		Logger:      testLogger(),
		Matcher:     matcher,
		Broker:      broker,
		Concurrency: 2,
		JobTimeout:  time.Second,
	})

	ack := broker.acknowledger()
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"job_id": 11}`)}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`not json`)}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"job_id": 12}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return len(broker.Settled()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	w.Stop()

	byTag := make(map[uint64]settlement)
	for _, s := range broker.Settled() {
		byTag[s.tag] = s
	}
	assert.True(t, byTag[1].ack)
	assert.False(t, byTag[2].ack)
	assert.False(t, byTag[2].requeue)
	assert.True(t, byTag[3].ack)
	assert.Equal(t, 2, broker.qos)
	assert.Len(t, matcher.Calls(), 2)
}

func TestWorker_RequeuesRetryableFailures(t *testing.T) {
	broker := newFakeBroker()
	w := NewWorker(&Config{
		Logger:  testLogger(),
		Matcher: &fakeMatcher{err: errors.New("connection reset")},
		Broker:  broker,
	})

	broker.deliveries <- amqp.Delivery{Acknowledger: broker.acknowledger(), DeliveryTag: 5, Body: []byte(`{"job_id": 3}`)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()

	require.Eventually(t, func() bool { return len(broker.Settled()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	w.Stop()

	s := broker.Settled()[0]
	assert.Equal(t, uint64(5), s.tag)
	assert.False(t, s.ack)
	assert.True(t, s.requeue)
}

func TestSweeper_Run(t *testing.T) {
	t.Run("expires through the matcher", func(t *testing.T) {
		matcher := &fakeMatcher{expired: 3}
		NewSweeper(matcher, "", testLogger()).Run(context.Background())
		assert.Equal(t, 1, matcher.sweeps)
	})

	t.Run("error is logged only", func(t *testing.T) {
		matcher := &fakeMatcher{sweepErr: errors.New("db down")}
		NewSweeper(matcher, "", testLogger()).Run(context.Background())
		assert.Equal(t, 1, matcher.sweeps)
	})

	t.Run("canceled context skips the sweep", func(t *testing.T) {
		matcher := &fakeMatcher{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		NewSweeper(matcher, "", testLogger()).Run(ctx)
		assert.Zero(t, matcher.sweeps)
	})
}

func TestSweeper_Start(t *testing.T) {
	t.Run("invalid schedule", func(t *testing.T) {
		err := NewSweeper(&fakeMatcher{}, "every now and then", testLogger()).Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid sweep schedule")
	})

	t.Run("default schedule", func(t *testing.T) {
		s := NewSweeper(&fakeMatcher{}, "", testLogger())
		assert.Equal(t, DefaultSweepSchedule, s.schedule)
		require.NoError(t, s.Start(context.Background()))
		s.Stop()
	})
}
