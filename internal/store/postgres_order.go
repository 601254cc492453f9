package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/katuparan/farm2stall/internal/market"
)

const orderViewSelect = `
	SELECT
		o.id, o.amount, o.method, o.status, o.weight, o.stall_inventory_id, o.consumer_id,
		si.id, si.stocks, si.size, si.type, si.freshness, si.item_class,
		si.price, si.product_id, si.stall_id,
		p.name, p.variant, p.current_price,
		s.stall_name, s.stall_location
	FROM orders o
	JOIN stall_inventory si ON o.stall_inventory_id = si.id
	JOIN products p ON si.product_id = p.id
	JOIN stalls s   ON si.stall_id = s.id
`

func scanOrderView(row pgx.Row) (market.OrderView, error) {
	var v market.OrderView
	err := row.Scan(
		&v.ID, &v.Amount, &v.Method, &v.Status, &v.Weight, &v.StallInventoryID, &v.ConsumerID,
		&v.Item.ID, &v.Item.Stocks, &v.Item.Size, &v.Item.Type, &v.Item.Freshness, &v.Item.Class,
		&v.Item.Price, &v.Item.ProductID, &v.Item.StallID,
		&v.Item.ProductName, &v.Item.ProductVariant, &v.Item.CurrentPrice,
		&v.Item.StallName, &v.Item.StallLocation,
	)
	return v, err
}

func orderViewTx(ctx context.Context, q querier, id int64) (market.OrderView, error) {
	v, err := scanOrderView(q.QueryRow(ctx, orderViewSelect+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}
	return v, wrap(err)
}

// CreateOrder inserts the order and claims its weight from the inventory line
// in one transaction. The claim is a conditional decrement checked by affected
// row count, never a read-then-write, so two concurrent orders cannot jointly
// overdraw the line.
func (p *Postgres) CreateOrder(ctx context.Context, o market.Order) (market.OrderView, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return market.OrderView{}, wrap(err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE stall_inventory SET stocks = stocks - $2
		WHERE id = $1 AND stocks >= $2`,
		o.StallInventoryID, o.Weight)
	if err != nil {
		return market.OrderView{}, wrap(err)
	}
	if ct.RowsAffected() == 0 {
		var available string
		err := tx.QueryRow(ctx, `SELECT stocks::text FROM stall_inventory WHERE id = $1`, o.StallInventoryID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return market.OrderView{}, fmt.Errorf("stall inventory %d: %w", o.StallInventoryID, market.ErrNotFound)
		}
		if err != nil {
			return market.OrderView{}, wrap(err)
		}
		return market.OrderView{}, fmt.Errorf("requested %s, available %s: %w", o.Weight, available, market.ErrInsufficientStock)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (amount, method, status, weight, stall_inventory_id, consumer_id)
		VALUES ($1, $2, 'processing', $3, $4, $5) RETURNING id`,
		o.Amount, o.Method, o.Weight, o.StallInventoryID, o.ConsumerID).Scan(&o.ID)
	if err != nil {
		return market.OrderView{}, wrap(err)
	}

	view, err := orderViewTx(ctx, tx, o.ID)
	if err != nil {
		return market.OrderView{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return market.OrderView{}, wrap(err)
	}
	return view, nil
}

func (p *Postgres) Order(ctx context.Context, id int64) (market.Order, error) {
	var o market.Order
	err := p.pool.QueryRow(ctx, `
		SELECT id, amount, method, status, weight, stall_inventory_id, consumer_id
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Amount, &o.Method, &o.Status, &o.Weight, &o.StallInventoryID, &o.ConsumerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Order{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}
	return o, wrap(err)
}

func (p *Postgres) OrderView(ctx context.Context, id int64) (market.OrderView, error) {
	return orderViewTx(ctx, p.pool, id)
}

func (p *Postgres) OrderViewsByConsumer(ctx context.Context, consumerID int64) ([]market.OrderView, error) {
	return p.orderViews(ctx, orderViewSelect+` WHERE o.consumer_id = $1 ORDER BY o.id DESC`, consumerID)
}

func (p *Postgres) OrderViewsByStall(ctx context.Context, stallID int64) ([]market.OrderView, error) {
	return p.orderViews(ctx, orderViewSelect+` WHERE si.stall_id = $1 ORDER BY o.id DESC`, stallID)
}

func (p *Postgres) orderViews(ctx context.Context, sql string, arg any) ([]market.OrderView, error) {
	rows, err := p.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []market.OrderView
	for rows.Next() {
		v, err := scanOrderView(rows)
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, v)
	}
	return out, wrap(rows.Err())
}

// TransitionOrder moves an order to `to` from one of the allowed source states.
// When the transition releases the order's claim (reject, cancel) the weight is
// restored to the inventory line inside the same transaction.
func (p *Postgres) TransitionOrder(ctx context.Context, id int64, from []market.OrderStatus, to market.OrderStatus, restock bool) (market.OrderView, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return market.OrderView{}, wrap(err)
	}
	defer tx.Rollback(ctx)

	var (
		weight      string
		inventoryID int64
	)
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1 AND status = ANY($3)
		RETURNING weight::text, stall_inventory_id`,
		id, to, orderStatuses(from)).Scan(&weight, &inventoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
		}
		if err != nil {
			return market.OrderView{}, wrap(err)
		}
		return market.OrderView{}, fmt.Errorf("order %d: %s -> %s: %w", id, current, to, market.ErrInvalidState)
	}
	if err != nil {
		return market.OrderView{}, wrap(err)
	}

	if restock {
		if _, err := tx.Exec(ctx, `
			UPDATE stall_inventory SET stocks = stocks + $2::numeric WHERE id = $1`,
			inventoryID, weight); err != nil {
			return market.OrderView{}, wrap(err)
		}
	}

	view, err := orderViewTx(ctx, tx, id)
	if err != nil {
		return market.OrderView{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return market.OrderView{}, wrap(err)
	}
	return view, nil
}

// DeleteOrder removes a still-processing order and restores its weight to the
// inventory line, atomically.
func (p *Postgres) DeleteOrder(ctx context.Context, id int64) (market.Order, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return market.Order{}, wrap(err)
	}
	defer tx.Rollback(ctx)

	var o market.Order
	err = tx.QueryRow(ctx, `
		DELETE FROM orders WHERE id = $1 AND status = 'processing'
		RETURNING id, amount, method, status, weight, stall_inventory_id, consumer_id`, id).
		Scan(&o.ID, &o.Amount, &o.Method, &o.Status, &o.Weight, &o.StallInventoryID, &o.ConsumerID)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return market.Order{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
		}
		if err != nil {
			return market.Order{}, wrap(err)
		}
		return market.Order{}, fmt.Errorf("order %d is %s, only processing orders can be deleted: %w", id, current, market.ErrInvalidState)
	}
	if err != nil {
		return market.Order{}, wrap(err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stall_inventory SET stocks = stocks + $2 WHERE id = $1`,
		o.StallInventoryID, o.Weight); err != nil {
		return market.Order{}, wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return market.Order{}, wrap(err)
	}
	return o, nil
}
