package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/katuparan/farm2stall/internal/market"
)

// requests.stall_id is denormalized from the demand at creation time so the
// stall context and disposer authorization survive demand completion.
const requestViewSelect = `
	SELECT
		r.id, r.price, r.method, r.status, r.supply_id, COALESCE(r.demand_id, 0),
		s.farmer_id, uf.username, uf.first_name, uf.last_name,
		COALESCE(uf.farm_name, ''), COALESCE(uf.farm_location, ''),
		st.id, st.stall_name, st.stall_location, st.representative
	FROM requests r
	JOIN supplies s ON r.supply_id = s.id
	JOIN users uf   ON s.farmer_id = uf.id
	JOIN stalls st  ON r.stall_id = st.id
`

func scanRequestView(row pgx.Row) (market.RequestView, error) {
	var v market.RequestView
	err := row.Scan(
		&v.ID, &v.Price, &v.Method, &v.Status, &v.SupplyID, &v.DemandID,
		&v.Farm.FarmerID, &v.Farm.Username, &v.Farm.FirstName, &v.Farm.LastName,
		&v.Farm.FarmName, &v.Farm.FarmLocation,
		&v.Stall.StallID, &v.Stall.StallName, &v.Stall.StallLocation, &v.Stall.Representative,
	)
	return v, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func requestViewTx(ctx context.Context, q querier, id int64) (market.RequestView, error) {
	v, err := scanRequestView(q.QueryRow(ctx, requestViewSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return market.RequestView{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	return v, wrap(err)
}

func (p *Postgres) Request(ctx context.Context, id int64) (market.Request, error) {
	var r market.Request
	err := p.pool.QueryRow(ctx, `
		SELECT id, price, method, status, supply_id, COALESCE(demand_id, 0)
		FROM requests WHERE id = $1`, id).
		Scan(&r.ID, &r.Price, &r.Method, &r.Status, &r.SupplyID, &r.DemandID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Request{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	return r, wrap(err)
}

func (p *Postgres) RequestView(ctx context.Context, id int64) (market.RequestView, error) {
	return requestViewTx(ctx, p.pool, id)
}

func (p *Postgres) RequestViewsByFarmer(ctx context.Context, farmerID int64) ([]market.RequestView, error) {
	return p.requestViews(ctx, requestViewSelect+` WHERE s.farmer_id = $1 ORDER BY r.id DESC`, farmerID)
}

func (p *Postgres) RequestViewsByStall(ctx context.Context, stallID int64) ([]market.RequestView, error) {
	return p.requestViews(ctx, requestViewSelect+` WHERE r.stall_id = $1 ORDER BY r.id DESC`, stallID)
}

func (p *Postgres) requestViews(ctx context.Context, sql string, arg any) ([]market.RequestView, error) {
	rows, err := p.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []market.RequestView
	for rows.Next() {
		v, err := scanRequestView(rows)
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, v)
	}
	return out, wrap(rows.Err())
}

// TransitionRequest moves a request to `to`, but only from one of the given
// source states. Guard and write are a single statement, so a terminal status
// can never be overwritten regardless of interleaving.
func (p *Postgres) TransitionRequest(ctx context.Context, id int64, from []market.RequestStatus, to market.RequestStatus) (market.RequestView, error) {
	ct, err := p.pool.Exec(ctx, `
		UPDATE requests SET status = $2 WHERE id = $1 AND status = ANY($3)`,
		id, to, requestStatuses(from))
	if err != nil {
		return market.RequestView{}, wrap(err)
	}
	if ct.RowsAffected() == 0 {
		var current string
		err := p.pool.QueryRow(ctx, `SELECT status FROM requests WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return market.RequestView{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
		}
		if err != nil {
			return market.RequestView{}, wrap(err)
		}
		return market.RequestView{}, fmt.Errorf("request %d: %s -> %s: %w", id, current, to, market.ErrInvalidState)
	}
	return p.RequestView(ctx, id)
}

// DeleteRequest removes a request that is still processing. The status guard
// lives in the DELETE itself.
func (p *Postgres) DeleteRequest(ctx context.Context, id int64) error {
	ct, err := p.pool.Exec(ctx, `
		DELETE FROM requests WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return wrap(err)
	}
	if ct.RowsAffected() == 0 {
		var current string
		err := p.pool.QueryRow(ctx, `SELECT status FROM requests WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("request %d: %w", id, market.ErrNotFound)
		}
		if err != nil {
			return wrap(err)
		}
		return fmt.Errorf("request %d is %s: %w", id, current, market.ErrInvalidState)
	}
	return nil
}
