package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the marketplace tables if they do not exist.
// Users, stalls and products are written by the excluded collaborators
// (identity, stall management, catalog); the core only reads them.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             BIGSERIAL PRIMARY KEY,
	username       TEXT UNIQUE NOT NULL,
	first_name     TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	contact_number TEXT NOT NULL DEFAULT '',
	type           TEXT NOT NULL CHECK (type IN ('farmer','disposer','driver','admin','consumer')),
	farm_name      TEXT,
	farm_location  TEXT,
	business       TEXT,
	location       TEXT,
	license_id     TEXT,
	email          TEXT,
	organization   TEXT,
	address        TEXT
);

CREATE TABLE IF NOT EXISTS stalls (
	id             BIGSERIAL PRIMARY KEY,
	stall_name     TEXT NOT NULL,
	stall_location TEXT NOT NULL,
	representative TEXT NOT NULL,
	user_id        BIGINT NOT NULL UNIQUE REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS products (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	variant       TEXT NOT NULL,
	current_price NUMERIC(12,3) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS supplies (
	id         BIGSERIAL PRIMARY KEY,
	weight     NUMERIC(12,3) NOT NULL CHECK (weight > 0),
	farmer_id  BIGINT NOT NULL REFERENCES users(id),
	product_id BIGINT NOT NULL REFERENCES products(id)
);

CREATE TABLE IF NOT EXISTS demands (
	id         BIGSERIAL PRIMARY KEY,
	weight     NUMERIC(12,3) NOT NULL CHECK (weight > 0),
	stall_id   BIGINT NOT NULL REFERENCES stalls(id),
	product_id BIGINT NOT NULL REFERENCES products(id),
	UNIQUE (stall_id, product_id)
);

CREATE TABLE IF NOT EXISTS requests (
	id        BIGSERIAL PRIMARY KEY,
	price     NUMERIC(12,3) NOT NULL CHECK (price >= 0),
	method    TEXT NOT NULL CHECK (method IN ('gcash','cash')),
	status    TEXT NOT NULL DEFAULT 'processing'
	          CHECK (status IN ('processing','accepted','rejected','completed')),
	supply_id BIGINT NOT NULL UNIQUE REFERENCES supplies(id),
	demand_id BIGINT REFERENCES demands(id) ON DELETE SET NULL,
	stall_id  BIGINT NOT NULL REFERENCES stalls(id)
);

CREATE TABLE IF NOT EXISTS stall_inventory (
	id         BIGSERIAL PRIMARY KEY,
	stocks     NUMERIC(12,3) NOT NULL DEFAULT 0 CHECK (stocks >= 0),
	size       TEXT NOT NULL,
	type       TEXT NOT NULL,
	freshness  TEXT NOT NULL,
	item_class TEXT NOT NULL,
	price      NUMERIC(12,3) NOT NULL DEFAULT 0,
	product_id BIGINT NOT NULL REFERENCES products(id),
	stall_id   BIGINT NOT NULL REFERENCES stalls(id),
	UNIQUE (stall_id, product_id, size, type)
);

CREATE TABLE IF NOT EXISTS orders (
	id                 BIGSERIAL PRIMARY KEY,
	amount             NUMERIC(12,3) NOT NULL CHECK (amount >= 0),
	method             TEXT NOT NULL CHECK (method IN ('gcash','cash')),
	status             TEXT NOT NULL DEFAULT 'processing'
	                   CHECK (status IN ('processing','accepted','rejected','completed','cancelled')),
	weight             NUMERIC(12,3) NOT NULL CHECK (weight > 0),
	stall_inventory_id BIGINT NOT NULL REFERENCES stall_inventory(id),
	consumer_id        BIGINT NOT NULL REFERENCES users(id)
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
