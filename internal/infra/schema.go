// README: Schema bootstrap; idempotent CREATE TABLE IF NOT EXISTS on startup.
package infra

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS restaurants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		opens_at INTEGER NOT NULL DEFAULT 0,
		closes_at INTEGER NOT NULL DEFAULT 0,
		lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		lng DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id TEXT PRIMARY KEY,
		restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
		name TEXT NOT NULL,
		price BIGINT NOT NULL,
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		courier_id TEXT,
		status TEXT NOT NULL,
		items JSONB NOT NULL DEFAULT '[]',
		subtotal BIGINT NOT NULL DEFAULT 0,
		discount BIGINT NOT NULL DEFAULT 0,
		delivery_fee BIGINT NOT NULL DEFAULT 0,
		packaging_fee BIGINT NOT NULL DEFAULT 0,
		platform_fee BIGINT NOT NULL DEFAULT 0,
		tax BIGINT NOT NULL DEFAULT 0,
		total BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'INR',
		coupon_code TEXT NOT NULL DEFAULT '',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		refund_status TEXT NOT NULL DEFAULT '',
		drop_address TEXT NOT NULL DEFAULT '',
		drop_lat DOUBLE PRECISION,
		drop_lng DOUBLE PRECISION,
		pickup_lat DOUBLE PRECISION,
		pickup_lng DOUBLE PRECISION,
		cancel_reason TEXT NOT NULL DEFAULT '',
		cancel_actor TEXT NOT NULL DEFAULT '',
		cancelled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_unassigned
		ON orders (created_at)
		WHERE courier_id IS NULL AND status IN ('accepted', 'ready')`,
	`CREATE TABLE IF NOT EXISTS partners (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL UNIQUE,
		approval_status TEXT NOT NULL DEFAULT 'pending',
		is_available BOOLEAN NOT NULL DEFAULT FALSE,
		current_order_id TEXT,
		lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		lng DOUBLE PRECISION NOT NULL DEFAULT 0,
		location_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deliveries BIGINT NOT NULL DEFAULT 0,
		earnings BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		code TEXT PRIMARY KEY,
		discount_type TEXT NOT NULL,
		value BIGINT NOT NULL DEFAULT 0,
		max_discount BIGINT,
		min_order_value BIGINT NOT NULL DEFAULT 0,
		restaurant_ids TEXT[] NOT NULL DEFAULT '{}',
		first_time_only BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		valid_from TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		valid_to TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		usage_limit BIGINT,
		usage_count BIGINT NOT NULL DEFAULT 0
	)`,
}

// Migrate creates any missing tables. Statements are idempotent so the
// server can run it unconditionally on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
