package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the expiry sweep every five minutes
const DefaultSweepSchedule = "@every 5m"

// Sweeper periodically expires PENDING matches past their deadline
type Sweeper struct {
	cron     *cron.Cron
	matcher  Matcher
	schedule string
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper for the given cron schedule
func NewSweeper(matcher Matcher, schedule string, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		matcher:  matcher,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep and starts the scheduler
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Run(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Expiry sweeper started", slog.String("schedule", s.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running sweep
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Expiry sweeper stopped")
}

// Run performs one sweep
func (s *Sweeper) Run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	n, err := s.matcher.ExpireNow(ctx)
	if err != nil {
		s.logger.Error("Expiry sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Info("Expiry sweep completed", slog.Int("matches_expired", n))
	}
}
