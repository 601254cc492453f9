// Package store implements the marketplace ledger: durable keyed records for
// supplies, demands, requests, inventory lines and orders, with every
// multi-step mutation executed as one transaction. Postgres is the durable
// implementation; Memory mirrors its semantics for tests.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/katuparan/farm2stall/internal/market"
)

const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
	pgCheckViolation  = "23514"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrap normalizes driver failures: timeouts surface as Unavailable so the
// caller can distinguish them from domain errors. No retry happens here.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}
	return err
}

func requestStatuses(in []market.RequestStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func orderStatuses(in []market.OrderStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
