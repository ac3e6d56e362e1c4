// README: Catalog store backed by PostgreSQL (lookups only).
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"feastly/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Restaurant(ctx context.Context, id types.ID) (*Restaurant, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, approved, opens_at, closes_at, lat, lng
		FROM restaurants
		WHERE id = $1`, string(id),
	)
	var r Restaurant
	err := row.Scan(&r.ID, &r.Name, &r.Approved, &r.OpensAt, &r.ClosesAt, &r.Location.Lat, &r.Location.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Item(ctx context.Context, id types.ID) (*MenuItem, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, restaurant_id, name, price, available
		FROM menu_items
		WHERE id = $1`, string(id),
	)
	var m MenuItem
	err := row.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
