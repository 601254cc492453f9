package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/katuparan/farm2stall/internal/market"
)

func (p *Postgres) Supply(ctx context.Context, id int64) (market.Supply, error) {
	var s market.Supply
	err := p.pool.QueryRow(ctx, `
		SELECT id, weight, farmer_id, product_id FROM supplies WHERE id = $1`, id).
		Scan(&s.ID, &s.Weight, &s.FarmerID, &s.ProductID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Supply{}, fmt.Errorf("supply %d: %w", id, market.ErrNotFound)
	}
	return s, wrap(err)
}

func (p *Postgres) SuppliesByFarmer(ctx context.Context, farmerID int64) ([]market.Supply, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, weight, farmer_id, product_id
		FROM supplies WHERE farmer_id = $1 ORDER BY id DESC`, farmerID)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []market.Supply
	for rows.Next() {
		var s market.Supply
		if err := rows.Scan(&s.ID, &s.Weight, &s.FarmerID, &s.ProductID); err != nil {
			return nil, wrap(err)
		}
		out = append(out, s)
	}
	return out, wrap(rows.Err())
}

// CreateSupplyAndRequest persists a farmer's supply and its linked request as
// one transaction. The demand is locked and re-validated inside the
// transaction so a concurrent weight change or completion cannot slip between
// the check and the insert.
func (p *Postgres) CreateSupplyAndRequest(
	ctx context.Context,
	farmerID, productID int64,
	weight decimal.Decimal,
	demandID int64,
	price decimal.Decimal,
	method market.Method,
) (market.SupplyRequest, error) {
	var out market.SupplyRequest

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return out, wrap(err)
	}
	defer tx.Rollback(ctx)

	var exists int64
	err = tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1`, productID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, fmt.Errorf("product %d: %w", productID, market.ErrNotFound)
	}
	if err != nil {
		return out, wrap(err)
	}

	demand, err := lockDemand(ctx, tx, demandID)
	if err != nil {
		return out, err
	}

	supply := market.Supply{Weight: weight, FarmerID: farmerID, ProductID: productID}
	if err := market.MatchSupplyDemand(supply, demand); err != nil {
		return out, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO supplies (weight, farmer_id, product_id)
		VALUES ($1, $2, $3) RETURNING id`,
		weight, farmerID, productID).Scan(&supply.ID)
	if err != nil {
		return out, wrap(err)
	}

	var requestID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO requests (price, method, status, supply_id, demand_id, stall_id)
		VALUES ($1, $2, 'processing', $3, $4, $5) RETURNING id`,
		price, method, supply.ID, demandID, demand.StallID).Scan(&requestID)
	if err != nil {
		return out, wrap(err)
	}

	view, err := requestViewTx(ctx, tx, requestID)
	if err != nil {
		return out, err
	}
	if err := tx.Commit(ctx); err != nil {
		return out, wrap(err)
	}

	out.Supply = supply
	out.Request = view
	return out, nil
}

// CreateRequestForSupply binds an existing supply to a demand. The UNIQUE
// constraint on requests.supply_id is what enforces one request per supply.
func (p *Postgres) CreateRequestForSupply(
	ctx context.Context,
	supplyID, demandID int64,
	price decimal.Decimal,
	method market.Method,
) (market.RequestView, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return market.RequestView{}, wrap(err)
	}
	defer tx.Rollback(ctx)

	var supply market.Supply
	err = tx.QueryRow(ctx, `
		SELECT id, weight, farmer_id, product_id FROM supplies WHERE id = $1`, supplyID).
		Scan(&supply.ID, &supply.Weight, &supply.FarmerID, &supply.ProductID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.RequestView{}, fmt.Errorf("supply %d: %w", supplyID, market.ErrNotFound)
	}
	if err != nil {
		return market.RequestView{}, wrap(err)
	}

	demand, err := lockDemand(ctx, tx, demandID)
	if err != nil {
		return market.RequestView{}, err
	}
	if err := market.MatchSupplyDemand(supply, demand); err != nil {
		return market.RequestView{}, err
	}

	var requestID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO requests (price, method, status, supply_id, demand_id, stall_id)
		VALUES ($1, $2, 'processing', $3, $4, $5) RETURNING id`,
		price, method, supplyID, demandID, demand.StallID).Scan(&requestID)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return market.RequestView{}, fmt.Errorf("supply %d already consumed by a request: %w", supplyID, market.ErrConflict)
		}
		return market.RequestView{}, wrap(err)
	}

	view, err := requestViewTx(ctx, tx, requestID)
	if err != nil {
		return market.RequestView{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return market.RequestView{}, wrap(err)
	}
	return view, nil
}

func lockDemand(ctx context.Context, tx pgx.Tx, id int64) (market.Demand, error) {
	var d market.Demand
	err := tx.QueryRow(ctx, `
		SELECT id, weight, stall_id, product_id FROM demands WHERE id = $1 FOR UPDATE`, id).
		Scan(&d.ID, &d.Weight, &d.StallID, &d.ProductID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Demand{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	return d, wrap(err)
}
