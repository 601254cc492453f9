// Package projector keeps the redis status read model warm by consuming the
// lifecycle topics. Processing is idempotent: a dedup key per event id guards
// against redelivery after a missed commit.
package projector

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/kafka"
	"github.com/katuparan/farm2stall/internal/market"
	"github.com/katuparan/farm2stall/internal/redisx"
)

const name = "market-projector"

// StatusCache is the slice of the redis read model the projector writes.
// *redisx.StatusCache satisfies it.
type StatusCache interface {
	SetRequest(ctx context.Context, id int64, rec redisx.RequestStatus) error
	DeleteRequest(ctx context.Context, id int64) error
	SetOrder(ctx context.Context, id int64, rec redisx.OrderStatus) error
	DeleteOrder(ctx context.Context, id int64) error
	MarkSeen(ctx context.Context, service, eventID string) (bool, error)
}

type Projector struct {
	cache StatusCache
	log   *zap.Logger
}

func New(cache StatusCache, log *zap.Logger) *Projector {
	return &Projector{cache: cache, log: log}
}

// Handle processes one lifecycle event. Returning nil commits the offset.
func (p *Projector) Handle(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and commit, redelivery will not fix it
		p.log.Error("undecodable event", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}

	fresh, err := p.cache.MarkSeen(ctx, name, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !fresh {
		p.log.Debug("duplicate event skipped", zap.String("event_id", env.EventID))
		return nil
	}

	if err := p.apply(ctx, env); err != nil {
		return fmt.Errorf("apply %s: %w", env.EventType, err)
	}
	p.log.Info("event applied",
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID),
		zap.String("trace_id", env.TraceID))
	return nil
}

func (p *Projector) apply(ctx context.Context, env market.Envelope) error {
	switch env.EventType {
	case market.EventRequestCreated:
		pl, err := kafka.UnwrapPayload[market.RequestCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		return p.cache.SetRequest(ctx, pl.RequestID, redisx.RequestStatus{
			Status:   string(pl.Status),
			FarmerID: pl.FarmerID,
			StallID:  pl.StallID,
		})
	case market.EventRequestStatus:
		pl, err := kafka.UnwrapPayload[market.RequestStatusPayload](env.Payload)
		if err != nil {
			return err
		}
		return p.cache.SetRequest(ctx, pl.RequestID, redisx.RequestStatus{
			Status:   string(pl.Status),
			FarmerID: pl.FarmerID,
			StallID:  pl.StallID,
		})
	case market.EventRequestDeleted:
		pl, err := kafka.UnwrapPayload[market.RequestDeletedPayload](env.Payload)
		if err != nil {
			return err
		}
		return p.cache.DeleteRequest(ctx, pl.RequestID)
	case market.EventDemandCompleted:
		pl, err := kafka.UnwrapPayload[market.DemandCompletedPayload](env.Payload)
		if err != nil {
			return err
		}
		// drop the stale entries; the next status read repopulates as completed
		for _, reqID := range pl.RequestIDs {
			if err := p.cache.DeleteRequest(ctx, reqID); err != nil {
				return err
			}
		}
		return nil
	case market.EventOrderCreated:
		pl, err := kafka.UnwrapPayload[market.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		return p.cache.SetOrder(ctx, pl.OrderID, redisx.OrderStatus{
			Status:     string(pl.Status),
			ConsumerID: pl.ConsumerID,
			StallID:    pl.StallID,
		})
	case market.EventOrderStatus:
		pl, err := kafka.UnwrapPayload[market.OrderStatusPayload](env.Payload)
		if err != nil {
			return err
		}
		return p.cache.SetOrder(ctx, pl.OrderID, redisx.OrderStatus{
			Status:     string(pl.Status),
			ConsumerID: pl.ConsumerID,
			StallID:    pl.StallID,
		})
	case market.EventOrderDeleted:
		pl, err := kafka.UnwrapPayload[market.OrderDeletedPayload](env.Payload)
		if err != nil {
			return err
		}
		return p.cache.DeleteOrder(ctx, pl.OrderID)
	default:
		p.log.Warn("unknown event type", zap.String("event_type", env.EventType))
		return nil
	}
}
