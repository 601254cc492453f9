package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/katuparan/farm2stall/internal/market"
)

// Products, stalls and users are written by external collaborators; the core
// only reads them for validation and projections.

func (p *Postgres) Product(ctx context.Context, id int64) (market.Product, error) {
	var pr market.Product
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, variant, current_price
		FROM products WHERE id = $1`, id).
		Scan(&pr.ID, &pr.Name, &pr.Variant, &pr.CurrentPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Product{}, fmt.Errorf("product %d: %w", id, market.ErrNotFound)
	}
	return pr, wrap(err)
}

func (p *Postgres) Products(ctx context.Context) ([]market.Product, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, variant, current_price
		FROM products ORDER BY name, variant`)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []market.Product
	for rows.Next() {
		var pr market.Product
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Variant, &pr.CurrentPrice); err != nil {
			return nil, wrap(err)
		}
		out = append(out, pr)
	}
	return out, wrap(rows.Err())
}

// StallForUser resolves the disposer's stall through the explicit one-to-one
// ownership relation (stalls.user_id is unique).
func (p *Postgres) StallForUser(ctx context.Context, userID int64) (market.Stall, error) {
	var s market.Stall
	err := p.pool.QueryRow(ctx, `
		SELECT id, stall_name, stall_location, representative, user_id
		FROM stalls WHERE user_id = $1`, userID).
		Scan(&s.ID, &s.Name, &s.Location, &s.Representative, &s.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Stall{}, fmt.Errorf("stall for user %d: %w", userID, market.ErrNotFound)
	}
	return s, wrap(err)
}
