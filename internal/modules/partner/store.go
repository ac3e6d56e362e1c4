// README: Partner store backed by PostgreSQL rows plus a Redis GEO index of available couriers.
package partner

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"feastly/internal/types"
)

const geoKey = "dispatch:partners"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redisClient *redis.Client) *Store {
	return &Store{db: db, redis: redisClient}
}

func (s *Store) Create(ctx context.Context, p *DeliveryPartner) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO partners (
			id, account_id, approval_status, is_available, current_order_id,
			lat, lng, location_at, deliveries, earnings, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id) DO NOTHING`,
		string(p.ID),
		string(p.AccountID),
		string(p.ApprovalStatus),
		p.IsAvailable,
		toStringPtr(p.CurrentOrderID),
		p.Location.Lat, p.Location.Lng, p.LocationAt,
		p.Deliveries,
		p.Earnings.Amount,
		p.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*DeliveryPartner, error) {
	return s.getBy(ctx, "id", string(id))
}

func (s *Store) GetByAccount(ctx context.Context, accountID types.ID) (*DeliveryPartner, error) {
	return s.getBy(ctx, "account_id", string(accountID))
}

func (s *Store) getBy(ctx context.Context, column, value string) (*DeliveryPartner, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, account_id, approval_status, is_available, current_order_id,
		       lat, lng, location_at, deliveries, earnings, created_at
		FROM partners
		WHERE `+column+` = $1`, value,
	)

	var p DeliveryPartner
	var currentOrder *string
	err := row.Scan(
		&p.ID, &p.AccountID, &p.ApprovalStatus, &p.IsAvailable, &currentOrder,
		&p.Location.Lat, &p.Location.Lng, &p.LocationAt,
		&p.Deliveries, &p.Earnings.Amount, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if currentOrder != nil {
		id := types.ID(*currentOrder)
		p.CurrentOrderID = &id
	}
	p.Earnings.Currency = types.DefaultCurrency
	return &p, nil
}

// SetAvailability flips the flag conditionally: a partner holding an order
// cannot go back online until the order is released.
func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE partners
		SET is_available = $2
		WHERE id = $1 AND ($2 = false OR current_order_id IS NULL)`,
		string(id), available,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if available {
		// re-expose in the GEO index at the last known position
		p, err := s.Get(ctx, id)
		if err != nil {
			return true, nil
		}
		_ = s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      string(id),
			Longitude: p.Location.Lng,
			Latitude:  p.Location.Lat,
		}).Err()
	} else {
		_ = s.redis.ZRem(ctx, geoKey, string(id)).Err()
	}
	return true, nil
}

// UpdateLocation is last-write-wins keyed on the update timestamp; stale
// writes (older than what is stored) are discarded.
func (s *Store) UpdateLocation(ctx context.Context, id types.ID, pos types.Point, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE partners
		SET lat = $2, lng = $3, location_at = $4
		WHERE id = $1 AND location_at <= $4`,
		string(id), pos.Lat, pos.Lng, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return nil
	}
	return s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// Nearby returns dispatch-eligible partners within radiusKm of p, closest
// first. The GEO index narrows the search; eligibility is re-checked against
// the rows because the index may lag reservations, and since those rows come
// back in no particular order the distances are recomputed and re-sorted here.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Candidate, error) {
	results, err := s.redis.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	positions := make(map[string]types.Point, len(results))
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Name
		positions[r.Name] = types.Point{Lat: r.Latitude, Lng: r.Longitude}
	}
	rows, err := s.db.Query(ctx, `
		SELECT id FROM partners
		WHERE id = ANY($1)
		  AND approval_status = 'approved'
		  AND is_available
		  AND current_order_id IS NULL`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Candidate, 0, len(results))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pos := positions[id]
		out = append(out, Candidate{
			ID:         types.ID(id),
			Position:   pos,
			DistanceKm: DistanceKm(p, pos),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	SortCandidates(out)
	return out, nil
}

// Reserve marks the partner busy with the order, only if it is approved and
// still free. Single conditional UPDATE so two dispatch triggers cannot both win.
func (s *Store) Reserve(ctx context.Context, partnerID, orderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE partners
		SET is_available = false, current_order_id = $2
		WHERE id = $1 AND approval_status = 'approved'
		  AND is_available AND current_order_id IS NULL`,
		string(partnerID), string(orderID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	_ = s.redis.ZRem(ctx, geoKey, string(partnerID)).Err()
	return true, nil
}

// Release frees the partner after a terminal order, guarded on the order it
// holds, and puts it back into the geo index at its last known position so
// the next dispatch can see it without waiting for a location ping.
func (s *Store) Release(ctx context.Context, partnerID, orderID types.ID) (bool, error) {
	var lat, lng float64
	err := s.db.QueryRow(ctx, `
		UPDATE partners
		SET is_available = true, current_order_id = NULL
		WHERE id = $1 AND current_order_id = $2
		RETURNING lat, lng`,
		string(partnerID), string(orderID),
	).Scan(&lat, &lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      string(partnerID),
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// AddDelivery bumps the lifetime stats; both counters only ever grow.
func (s *Store) AddDelivery(ctx context.Context, partnerID types.ID, earnings types.Money) error {
	_, err := s.db.Exec(ctx, `
		UPDATE partners
		SET deliveries = deliveries + 1, earnings = earnings + $2
		WHERE id = $1`,
		string(partnerID), earnings.Amount,
	)
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
