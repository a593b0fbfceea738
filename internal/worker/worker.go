package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// Matcher runs matching passes and expiry sweeps
type Matcher interface {
	TriggerMatching(ctx context.Context, jobID int64, maxMatches int) (*domain.MatchResult, error)
	ExpireNow(ctx context.Context) (int, error)
}

// Broker is the message queue the worker consumes matching requests from
type Broker interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Ack(deliveryTag uint64) error
	Nack(deliveryTag uint64, requeue bool) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Matcher       Matcher
	Broker        Broker
	QueueName     string
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	MaxMatches    int
	SweepSchedule string
}

// Worker consumes matching requests and runs them on a bounded pool of goroutines
type Worker struct {
	logger        *slog.Logger
	matcher       Matcher
	broker        Broker
	sweeper       *Sweeper
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	maxMatches    int
	jobsChan      chan *domain.MatchMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := max(cfg.Concurrency, 1)
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	w := &Worker{
		logger:        cfg.Logger,
		matcher:       cfg.Matcher,
		broker:        cfg.Broker,
		workerID:      "matcher-" + uuid.NewString(),
		queueName:     cfg.QueueName,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		jobTimeout:    cfg.JobTimeout,
		maxMatches:    cfg.MaxMatches,
		jobsChan:      make(chan *domain.MatchMessage, concurrency),
		stopChan:      make(chan struct{}),
	}
	if cfg.SweepSchedule != "" {
		w.sweeper = NewSweeper(cfg.Matcher, cfg.SweepSchedule, cfg.Logger)
	}
	return w
}

// ID returns the consumer identity of this worker
func (w *Worker) ID() string {
	return w.workerID
}

// Start consumes matching requests until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	if w.sweeper != nil {
		if err := w.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop signals the pool to exit and waits for in-flight requests
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		if w.sweeper != nil {
			w.sweeper.Stop()
		}
		close(w.stopChan)
		w.wg.Wait()
		w.logger.Info("Worker stopped")
	})
}
