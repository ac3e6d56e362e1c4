// README: Coupon store backed by PostgreSQL.
package coupon

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

func (s *Store) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	row := s.db.QueryRow(ctx, `
		SELECT code, discount_type, value, max_discount, min_order_value,
		       restaurant_ids, first_time_only, active, valid_from, valid_to,
		       usage_limit, usage_count
		FROM coupons
		WHERE code = $1`, NormalizeCode(code),
	)

	var c Coupon
	var restaurantIDs []string
	err := row.Scan(
		&c.Code, &c.Type, &c.Value, &c.MaxDiscount, &c.MinOrderValue,
		&restaurantIDs, &c.FirstTimeOnly, &c.Active, &c.ValidFrom, &c.ValidTo,
		&c.UsageLimit, &c.UsageCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, id := range restaurantIDs {
		c.RestaurantIDs = append(c.RestaurantIDs, types.ID(id))
	}
	return &c, nil
}

// TryConsume does the cap check and the increment in one conditional UPDATE,
// so two concurrent orders cannot both slip under the limit.
func (s *Store) TryConsume(ctx context.Context, code string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE code = $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		NormalizeCode(code),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
