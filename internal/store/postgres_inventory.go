package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/katuparan/farm2stall/internal/market"
)

const inventoryViewSelect = `
	SELECT
		si.id, si.stocks, si.size, si.type, si.freshness, si.item_class,
		si.price, si.product_id, si.stall_id,
		p.name, p.variant, p.current_price,
		s.stall_name, s.stall_location
	FROM stall_inventory si
	JOIN products p ON si.product_id = p.id
	JOIN stalls s   ON si.stall_id = s.id
`

func scanInventoryView(row pgx.Row) (market.InventoryView, error) {
	var v market.InventoryView
	err := row.Scan(
		&v.ID, &v.Stocks, &v.Size, &v.Type, &v.Freshness, &v.Class,
		&v.Price, &v.ProductID, &v.StallID,
		&v.ProductName, &v.ProductVariant, &v.CurrentPrice,
		&v.StallName, &v.StallLocation,
	)
	return v, err
}

func (p *Postgres) CreateInventory(ctx context.Context, inv market.StallInventory) (market.StallInventory, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO stall_inventory (stocks, size, type, freshness, item_class, price, product_id, stall_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		inv.Stocks, inv.Size, inv.Type, inv.Freshness, inv.Class, inv.Price, inv.ProductID, inv.StallID).
		Scan(&inv.ID)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return market.StallInventory{}, fmt.Errorf("inventory line for this stall, product, size and type exists: %w", market.ErrConflict)
		case pgFKViolation:
			return market.StallInventory{}, fmt.Errorf("product %d: %w", inv.ProductID, market.ErrNotFound)
		}
		return market.StallInventory{}, wrap(err)
	}
	return inv, nil
}

func (p *Postgres) Inventory(ctx context.Context, id int64) (market.StallInventory, error) {
	var inv market.StallInventory
	err := p.pool.QueryRow(ctx, `
		SELECT id, stocks, size, type, freshness, item_class, price, product_id, stall_id
		FROM stall_inventory WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Stocks, &inv.Size, &inv.Type, &inv.Freshness, &inv.Class,
			&inv.Price, &inv.ProductID, &inv.StallID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.StallInventory{}, fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	return inv, wrap(err)
}

func (p *Postgres) InventoryView(ctx context.Context, id int64) (market.InventoryView, error) {
	v, err := scanInventoryView(p.pool.QueryRow(ctx, inventoryViewSelect+` WHERE si.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return market.InventoryView{}, fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	return v, wrap(err)
}

func (p *Postgres) InventoryViewsByStall(ctx context.Context, stallID int64) ([]market.InventoryView, error) {
	return p.inventoryViews(ctx, inventoryViewSelect+` WHERE si.stall_id = $1 ORDER BY p.name, p.variant, si.size`, stallID)
}

func (p *Postgres) AllInventoryViews(ctx context.Context) ([]market.InventoryView, error) {
	return p.inventoryViews(ctx, inventoryViewSelect+` ORDER BY s.stall_name, p.name, p.variant, si.size`)
}

func (p *Postgres) inventoryViews(ctx context.Context, sql string, args ...any) ([]market.InventoryView, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []market.InventoryView
	for rows.Next() {
		v, err := scanInventoryView(rows)
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, v)
	}
	return out, wrap(rows.Err())
}

func (p *Postgres) UpdateInventory(ctx context.Context, id int64, upd market.InventoryUpdate) (market.StallInventory, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Stocks != nil {
		add("stocks", *upd.Stocks)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.Size != nil {
		add("size", *upd.Size)
	}
	if upd.Type != nil {
		add("type", *upd.Type)
	}
	if upd.Freshness != nil {
		add("freshness", *upd.Freshness)
	}
	if upd.Class != nil {
		add("item_class", *upd.Class)
	}
	if len(sets) == 0 {
		return market.StallInventory{}, &market.ValidationError{Message: "no valid fields to update"}
	}
	args = append(args, id)

	ct, err := p.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE stall_inventory SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return market.StallInventory{}, fmt.Errorf("inventory line for this stall, product, size and type exists: %w", market.ErrConflict)
		}
		return market.StallInventory{}, wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return market.StallInventory{}, fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	return p.Inventory(ctx, id)
}

func (p *Postgres) DeleteInventory(ctx context.Context, id int64) error {
	ct, err := p.pool.Exec(ctx, `DELETE FROM stall_inventory WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == pgFKViolation {
			return fmt.Errorf("stall inventory %d has orders: %w", id, market.ErrConflict)
		}
		return wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	return nil
}
