// README: Order store backed by PostgreSQL; all state changes are conditional writes.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

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

func (s *Store) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, restaurant_id, courier_id, items,
			subtotal, discount, delivery_fee, packaging_fee, platform_fee, tax, total,
			currency, coupon_code, status, payment_status,
			drop_address, drop_lat, drop_lng, pickup_lat, pickup_lng,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23
		)`,
		string(o.ID),
		string(o.CustomerID),
		string(o.RestaurantID),
		toStringPtr(o.CourierID),
		items,
		o.Subtotal, o.Discount, o.DeliveryFee, o.PackagingFee, o.PlatformFee, o.Tax, o.Total,
		o.Currency,
		o.CouponCode,
		string(o.Status),
		string(o.Payment),
		o.DropAddress,
		latPtr(o.DropPoint), lngPtr(o.DropPoint),
		latPtr(o.PickupPoint), lngPtr(o.PickupPoint),
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, restaurant_id, courier_id, items,
		       subtotal, discount, delivery_fee, packaging_fee, platform_fee, tax, total,
		       currency, coupon_code, status, payment_status,
		       cancel_reason, cancel_actor, cancelled_at, refund_status,
		       drop_address, drop_lat, drop_lng, pickup_lat, pickup_lng,
		       created_at, updated_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var courierID, cancelReason, cancelActor, refund *string
	var cancelledAt *time.Time
	var items []byte
	var dropLat, dropLng, pickupLat, pickupLng *float64

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &courierID, &items,
		&o.Subtotal, &o.Discount, &o.DeliveryFee, &o.PackagingFee, &o.PlatformFee, &o.Tax, &o.Total,
		&o.Currency, &o.CouponCode, &o.Status, &o.Payment,
		&cancelReason, &cancelActor, &cancelledAt, &refund,
		&o.DropAddress, &dropLat, &dropLng, &pickupLat, &pickupLng,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if courierID != nil {
		c := types.ID(*courierID)
		o.CourierID = &c
	}
	if cancelledAt != nil {
		o.Cancellation = &Cancellation{
			At:     *cancelledAt,
			Refund: RefundNone,
		}
		if cancelReason != nil {
			o.Cancellation.Reason = *cancelReason
		}
		if cancelActor != nil {
			o.Cancellation.Actor = *cancelActor
		}
		if refund != nil {
			o.Cancellation.Refund = RefundStatus(*refund)
		}
	}
	o.DropPoint = toPoint(dropLat, dropLng)
	o.PickupPoint = toPoint(pickupLat, pickupLng)
	return &o, nil
}

// UpdateStatus moves the order from -> to as a single compare-and-swap;
// delivered also forces the payment status to paid in the same statement.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = CASE WHEN $1 = 'delivered' THEN 'paid' ELSE payment_status END,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel terminally transitions the order and records the cancellation
// metadata, guarded on the expected prior status.
func (s *Store) Cancel(ctx context.Context, id types.ID, from Status, c Cancellation) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = 'cancelled',
		    cancel_reason = $1,
		    cancel_actor = $2,
		    cancelled_at = $3,
		    refund_status = $4,
		    updated_at = NOW()
		WHERE id = $5 AND status = $6`,
		c.Reason, c.Actor, c.At, string(c.Refund), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AssignCourier sets the courier reference only if it is still unset, and
// advances a processing order to accepted in the same statement. This is the
// write both dispatch triggers race on.
func (s *Store) AssignCourier(ctx context.Context, orderID, courierID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET courier_id = $1,
		    status = CASE WHEN status = 'processing' THEN 'accepted' ELSE status END,
		    updated_at = NOW()
		WHERE id = $2
		  AND courier_id IS NULL
		  AND status IN ('processing', 'accepted', 'ready')`,
		string(courierID), string(orderID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UnassignCourier compensates a half-completed assignment whose partner
// reservation was lost; guarded so only the assigning caller can undo it.
func (s *Store) UnassignCourier(ctx context.Context, orderID, courierID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET courier_id = NULL, updated_at = NOW()
		WHERE id = $1 AND courier_id = $2`,
		string(orderID), string(courierID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CountByCustomer(ctx context.Context, customerID types.ID) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE customer_id = $1`, string(customerID),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListUnassigned returns dispatch-eligible orders with no courier, oldest
// first, for the retry sweep.
func (s *Store) ListUnassigned(ctx context.Context, limit int) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM orders
		WHERE courier_id IS NULL AND status IN ('accepted', 'ready')
		ORDER BY created_at
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func latPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lat
}

func lngPtr(p *types.Point) *float64 {
	if p == nil {
		return nil
	}
	return &p.Lng
}

func toPoint(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &types.Point{Lat: *lat, Lng: *lng}
}
