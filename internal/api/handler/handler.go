package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/partimer-be/internal/detour"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// MatchingService is the matching engine as used by the HTTP layer
type MatchingService interface {
	TriggerMatching(ctx context.Context, jobID int64, maxMatches int) (*domain.MatchResult, error)
	ExpireNow(ctx context.Context) (int, error)
	PublishJob(ctx context.Context, jobID int64) (*domain.Job, error)
	ListJobMatches(ctx context.Context, jobID int64, status domain.MatchStatus) ([]domain.JobMatch, error)
	ListWorkerOffers(ctx context.Context, workerID int64, status domain.MatchStatus) ([]domain.JobMatch, error)
	RespondToMatch(ctx context.Context, workerID, matchID int64, response string) (*domain.JobMatch, error)
}

// RouteMatcher ranks open orders for a driver route
type RouteMatcher interface {
	MatchesForRoute(ctx context.Context, routeID int64) ([]detour.Match, error)
}

// Queue enqueues matching requests for the worker service
type Queue interface {
	PublishJSON(ctx context.Context, v any) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Matching MatchingService
	Routes   RouteMatcher
	Queue    Queue
}

// MatchingHandler serves the matching, job and offer endpoints
type MatchingHandler struct {
	logger   *slog.Logger
	matching MatchingService
	queue    Queue
}

// NewMatchingHandler creates a new MatchingHandler instance
func NewMatchingHandler(deps *Dependencies) *MatchingHandler {
	return &MatchingHandler{
		logger:   deps.Logger,
		matching: deps.Matching,
		queue:    deps.Queue,
	}
}

// RouteHandler serves the ride-detour endpoint
type RouteHandler struct {
	logger *slog.Logger
	routes RouteMatcher
}

// NewRouteHandler creates a new RouteHandler instance
func NewRouteHandler(deps *Dependencies) *RouteHandler {
	return &RouteHandler{
		logger: deps.Logger,
		routes: deps.Routes,
	}
}
