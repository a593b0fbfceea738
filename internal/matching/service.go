// Package matching implements candidate selection, scoring and the lead
// lifecycle for part-time job postings.
package matching

import (
	"log/slog"
	"time"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// Event channels published through the Notifier.
const (
	EventMatchesCreated = "EVENT_MATCHES_CREATED"
	EventMatchesExpired = "EVENT_MATCHES_EXPIRED"
	EventMatchResponded = "EVENT_MATCH_RESPONDED"
)

// Config holds the tunables of a matching run
type Config struct {
	MaxMatches         int     // default cap per run
	LeadMultiplier     int     // leads sent per worker needed
	LeadPrice          float64 // price of each lead
	FallbackDistanceKm float64 // used when either side has no coordinates
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxMatches:         10,
		LeadMultiplier:     3,
		LeadPrice:          domain.DefaultLeadPrice,
		FallbackDistanceKm: 5.0,
	}
}

// Service runs matching, expiry and response handling against a Store.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier publishes lifecycle events through n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a matching Service. Zero fields of cfg fall back to DefaultConfig.
func NewService(store Store, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = def.MaxMatches
	}
	if cfg.LeadMultiplier <= 0 {
		cfg.LeadMultiplier = def.LeadMultiplier
	}
	if cfg.LeadPrice <= 0 {
		cfg.LeadPrice = def.LeadPrice
	}
	if cfg.FallbackDistanceKm <= 0 {
		cfg.FallbackDistanceKm = def.FallbackDistanceKm
	}

	s := &Service{
		store:  store,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
