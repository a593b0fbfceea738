package detour

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore reads routes and orders from PostgreSQL
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetActiveRoute(ctx context.Context, routeID int64) (*Route, error) {
	query := `
		SELECT id, start_lat, start_lng, end_lat, end_lng, depart_time, max_detour_km, status
		FROM routes
		WHERE id = $1 AND status = $2`

	var r Route
	if err := s.db.GetContext(ctx, &r, query, routeID, RouteStatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errRouteNotFound(routeID)
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListOpenOrders(ctx context.Context) ([]Order, error) {
	query := `
		SELECT id, pickup_lat, pickup_lng, drop_lat, drop_lng, ready_from, due_by, payout, priority, status
		FROM orders
		WHERE status = $1
		ORDER BY id`

	orders := make([]Order, 0)
	if err := s.db.SelectContext(ctx, &orders, query, OrderStatusOpen); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

var _ Store = (*PostgresStore)(nil)
