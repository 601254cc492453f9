package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/katuparan/farm2stall/internal/market"
)

const demandViewSelect = `
	SELECT d.id, d.weight, d.stall_id, d.product_id, p.name, p.variant
	FROM demands d
	JOIN products p ON d.product_id = p.id
`

func scanDemandView(row pgx.Row) (market.DemandView, error) {
	var v market.DemandView
	err := row.Scan(&v.ID, &v.Weight, &v.StallID, &v.ProductID, &v.ProductName, &v.ProductVariant)
	return v, err
}

// UpsertDemand keeps at most one live demand per (stall, product): a second
// save for the same pair replaces the weight instead of inserting.
func (p *Postgres) UpsertDemand(ctx context.Context, stallID, productID int64, weight decimal.Decimal) (market.DemandView, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO demands (weight, stall_id, product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (stall_id, product_id) DO UPDATE SET weight = EXCLUDED.weight
		RETURNING id`, weight, stallID, productID).Scan(&id)
	if err != nil {
		if pgCode(err) == pgFKViolation {
			return market.DemandView{}, fmt.Errorf("product %d: %w", productID, market.ErrNotFound)
		}
		return market.DemandView{}, wrap(err)
	}
	return p.DemandView(ctx, id)
}

func (p *Postgres) Demand(ctx context.Context, id int64) (market.Demand, error) {
	var d market.Demand
	err := p.pool.QueryRow(ctx, `
		SELECT id, weight, stall_id, product_id FROM demands WHERE id = $1`, id).
		Scan(&d.ID, &d.Weight, &d.StallID, &d.ProductID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Demand{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	return d, wrap(err)
}

func (p *Postgres) DemandView(ctx context.Context, id int64) (market.DemandView, error) {
	v, err := scanDemandView(p.pool.QueryRow(ctx, demandViewSelect+` WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return market.DemandView{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	return v, wrap(err)
}

func (p *Postgres) DemandsByStall(ctx context.Context, stallID int64) ([]market.DemandView, error) {
	rows, err := p.pool.Query(ctx, demandViewSelect+`
		WHERE d.stall_id = $1 ORDER BY p.name, p.variant`, stallID)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []market.DemandView
	for rows.Next() {
		v, err := scanDemandView(rows)
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, v)
	}
	return out, wrap(rows.Err())
}

func (p *Postgres) UpdateDemandWeight(ctx context.Context, id int64, weight decimal.Decimal) (market.DemandView, error) {
	ct, err := p.pool.Exec(ctx, `UPDATE demands SET weight = $2 WHERE id = $1`, id, weight)
	if err != nil {
		return market.DemandView{}, wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return market.DemandView{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	return p.DemandView(ctx, id)
}

// CompleteDemand bulk-completes every live request linked to the demand and
// deletes the demand row in the same transaction. Requests already in a
// terminal state keep it. Returns the ids of the requests it completed so
// callers can invalidate their cached status.
func (p *Postgres) CompleteDemand(ctx context.Context, id int64) ([]int64, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, wrap(err)
	}
	defer tx.Rollback(ctx)

	// Lock the demand so a concurrent request creation against it either
	// commits before the completion sweep or fails its snapshot read.
	var demandID int64
	err = tx.QueryRow(ctx, `SELECT id FROM demands WHERE id = $1 FOR UPDATE`, id).Scan(&demandID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	if err != nil {
		return nil, wrap(err)
	}

	rows, err := tx.Query(ctx, `
		UPDATE requests SET status = 'completed'
		WHERE demand_id = $1 AND status = ANY($2)
		RETURNING id`,
		id, []string{string(market.RequestProcessing), string(market.RequestAccepted)})
	if err != nil {
		return nil, wrap(err)
	}
	var completed []int64
	for rows.Next() {
		var reqID int64
		if err := rows.Scan(&reqID); err != nil {
			rows.Close()
			return nil, wrap(err)
		}
		completed = append(completed, reqID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap(err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM demands WHERE id = $1`, id); err != nil {
		return nil, wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, wrap(err)
	}
	return completed, nil
}
