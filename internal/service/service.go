// Package service holds the lifecycle engines: authorization, validation and
// the transition rules for requests and orders, on top of the transactional
// ledger in internal/store.
package service

import (
	"context"

	"github.com/katuparan/farm2stall/internal/market"
)

// Publisher emits lifecycle events after a mutation has committed. Implemented
// by the kafka bus; tests use Nop.
type Publisher interface {
	Publish(topic string, env market.Envelope)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(string, market.Envelope) {}

type ctxKey int

const traceKey ctxKey = iota

// WithTrace attaches the inbound request id so published envelopes carry it.
func WithTrace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey, id)
}

func traceFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey).(string); ok {
		return v
	}
	return ""
}

// StallResolver is the stall-collaborator contract: the one stall a disposer
// owns, or NotFound.
type StallResolver interface {
	StallForUser(ctx context.Context, userID int64) (market.Stall, error)
}

var errNoStall = &market.ValidationError{Message: "no stall found for disposer"}
