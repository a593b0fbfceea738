// Package detour ranks open delivery orders against a driver's route by the
// extra distance picking them up would add.
package detour

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cuongbtq/partimer-be/internal/geo"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// AverageSpeedKmh converts detour distance to minutes.
const AverageSpeedKmh = 35.0

const (
	RouteStatusActive = "active"
	OrderStatusOpen   = "open"
)

// Route is a driver's planned trip
type Route struct {
	ID          int64   `db:"id" json:"id"`
	StartLat    float64 `db:"start_lat" json:"start_lat"`
	StartLng    float64 `db:"start_lng" json:"start_lng"`
	EndLat      float64 `db:"end_lat" json:"end_lat"`
	EndLng      float64 `db:"end_lng" json:"end_lng"`
	DepartTime  string  `db:"depart_time" json:"depart_time"`
	MaxDetourKm float64 `db:"max_detour_km" json:"max_detour_km"`
	Status      string  `db:"status" json:"status"`
}

// Order is a pickup/drop-off request waiting for a driver
type Order struct {
	ID        int64   `db:"id" json:"id"`
	PickupLat float64 `db:"pickup_lat" json:"pickup_lat"`
	PickupLng float64 `db:"pickup_lng" json:"pickup_lng"`
	DropLat   float64 `db:"drop_lat" json:"drop_lat"`
	DropLng   float64 `db:"drop_lng" json:"drop_lng"`
	ReadyFrom string  `db:"ready_from" json:"ready_from"`
	DueBy     string  `db:"due_by" json:"due_by"`
	Payout    float64 `db:"payout" json:"payout"`
	Priority  int     `db:"priority" json:"priority"`
	Status    string  `db:"status" json:"status"`
}

// Match is an order that fits within a route's detour budget
type Match struct {
	Order    Order   `json:"order"`
	AddedKm  float64 `json:"added_km"`
	AddedMin float64 `json:"added_min"`
	Score    float64 `json:"score"`
}

// MarginalCostKm is the extra distance of start→pickup→drop→end over the
// direct start→end leg, never negative.
func MarginalCostKm(start, pickup, drop, end geo.Point) float64 {
	direct := start.DistanceTo(end)
	withOrder := start.DistanceTo(pickup) + pickup.DistanceTo(drop) + drop.DistanceTo(end)
	return max(0, withOrder-direct)
}

// EstimateMinutes converts km to minutes at AverageSpeedKmh.
func EstimateMinutes(km float64) float64 {
	return km / AverageSpeedKmh * 60
}

// Score ranks an order for a route. Shorter detours score higher.
func Score(addedKm, payout float64, priority int) float64 {
	return 1/(addedKm+1) + payout*0.1 + float64(priority)*0.2
}

// RankOrders keeps orders within the route's max detour and sorts them by
// score, highest first.
func RankOrders(route *Route, orders []Order) []Match {
	start := geo.Point{Lat: route.StartLat, Lon: route.StartLng}
	end := geo.Point{Lat: route.EndLat, Lon: route.EndLng}

	out := make([]Match, 0, len(orders))
	for _, o := range orders {
		added := MarginalCostKm(start,
			geo.Point{Lat: o.PickupLat, Lon: o.PickupLng},
			geo.Point{Lat: o.DropLat, Lon: o.DropLng},
			end,
		)
		if added > route.MaxDetourKm {
			continue
		}
		out = append(out, Match{
			Order:    o,
			AddedKm:  geo.Round(added, 2),
			AddedMin: geo.Round(EstimateMinutes(added), 1),
			Score:    geo.Round(Score(added, o.Payout, o.Priority), 3),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Store reads routes and orders.
type Store interface {
	// GetActiveRoute returns domain.ErrNotFound unless the route exists and is active.
	GetActiveRoute(ctx context.Context, routeID int64) (*Route, error)
	ListOpenOrders(ctx context.Context) ([]Order, error)
}

// Service serves route match queries
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// MatchesForRoute ranks every open order against an active route.
func (s *Service) MatchesForRoute(ctx context.Context, routeID int64) ([]Match, error) {
	route, err := s.store.GetActiveRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}

	matches := RankOrders(route, orders)
	s.logger.Debug("Route matches computed",
		slog.Int64("route_id", routeID),
		slog.Int("open_orders", len(orders)),
		slog.Int("matches", len(matches)),
	)
	return matches, nil
}

func errRouteNotFound(routeID int64) error {
	return domain.NotFoundf("route %d", routeID)
}
