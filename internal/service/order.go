package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/market"
)

// OrderStore is the slice of the ledger the order engine uses.
type OrderStore interface {
	StallResolver
	CreateOrder(ctx context.Context, o market.Order) (market.OrderView, error)
	Order(ctx context.Context, id int64) (market.Order, error)
	OrderView(ctx context.Context, id int64) (market.OrderView, error)
	OrderViewsByConsumer(ctx context.Context, consumerID int64) ([]market.OrderView, error)
	OrderViewsByStall(ctx context.Context, stallID int64) ([]market.OrderView, error)
	TransitionOrder(ctx context.Context, id int64, from []market.OrderStatus, to market.OrderStatus, restock bool) (market.OrderView, error)
	DeleteOrder(ctx context.Context, id int64) (market.Order, error)
}

type CreateOrderInput struct {
	StallInventoryID int64
	Amount           decimal.Decimal
	Method           market.Method
	Weight           decimal.Decimal
}

type OrderService struct {
	store    OrderStore
	pub      Publisher
	producer string
	log      *zap.Logger
}

func NewOrderService(store OrderStore, pub Publisher, producer string, log *zap.Logger) *OrderService {
	return &OrderService{store: store, pub: pub, producer: producer, log: log}
}

// Create places a consumer's claim on an inventory line. The stock check and
// deduction are one conditional write in the ledger; a claim that does not fit
// the current stocks fails with InsufficientStock and changes nothing.
func (s *OrderService) Create(ctx context.Context, actor market.Actor, in CreateOrderInput) (market.OrderView, error) {
	if actor.Role != market.RoleConsumer {
		return market.OrderView{}, fmt.Errorf("consumer only: %w", market.ErrForbidden)
	}
	if err := market.PositiveWeight(in.Weight); err != nil {
		return market.OrderView{}, err
	}
	if err := market.NonNegativeAmount("amount", in.Amount); err != nil {
		return market.OrderView{}, err
	}

	view, err := s.store.CreateOrder(ctx, market.Order{
		Amount:           in.Amount,
		Method:           in.Method,
		Weight:           in.Weight,
		StallInventoryID: in.StallInventoryID,
		ConsumerID:       actor.ID,
	})
	if err != nil {
		return market.OrderView{}, err
	}
	s.log.Info("order created",
		zap.Int64("order_id", view.ID),
		zap.Int64("stall_inventory_id", view.StallInventoryID),
		zap.String("weight", view.Weight.String()))
	s.pub.Publish(market.TopicOrderCreated, market.NewEnvelope(
		market.EventOrderCreated, s.producer, traceFrom(ctx), view.ID,
		market.OrderCreatedPayload{
			OrderID:     view.ID,
			InventoryID: view.StallInventoryID,
			ConsumerID:  view.ConsumerID,
			StallID:     view.Item.StallID,
			Weight:      view.Weight,
			Amount:      view.Amount,
			Status:      view.Status,
		},
	))
	return view, nil
}

func (s *OrderService) List(ctx context.Context, actor market.Actor) ([]market.OrderView, error) {
	switch actor.Role {
	case market.RoleConsumer:
		return s.store.OrderViewsByConsumer(ctx, actor.ID)
	case market.RoleDisposer:
		stall, err := s.store.StallForUser(ctx, actor.ID)
		if errors.Is(err, market.ErrNotFound) {
			return []market.OrderView{}, nil
		}
		if err != nil {
			return nil, err
		}
		return s.store.OrderViewsByStall(ctx, stall.ID)
	default:
		return nil, market.ErrForbidden
	}
}

func (s *OrderService) Get(ctx context.Context, actor market.Actor, id int64) (market.OrderView, error) {
	v, err := s.store.OrderView(ctx, id)
	if err != nil {
		return market.OrderView{}, err
	}
	switch actor.Role {
	case market.RoleConsumer:
		if v.ConsumerID != actor.ID {
			return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
		}
	case market.RoleDisposer:
		stall, err := s.store.StallForUser(ctx, actor.ID)
		if err != nil || v.Item.StallID != stall.ID {
			return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
		}
	default:
		return market.OrderView{}, market.ErrForbidden
	}
	return v, nil
}

// UpdateStatus is the disposer-side transition. Rejecting or cancelling
// releases the order's claim and restores the weight to the inventory line in
// the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, actor market.Actor, id int64, to market.OrderStatus) (market.OrderView, error) {
	if actor.Role != market.RoleDisposer {
		return market.OrderView{}, fmt.Errorf("disposer only: %w", market.ErrForbidden)
	}
	stall, err := s.store.StallForUser(ctx, actor.ID)
	if errors.Is(err, market.ErrNotFound) {
		return market.OrderView{}, errNoStall
	}
	if err != nil {
		return market.OrderView{}, err
	}
	v, err := s.store.OrderView(ctx, id)
	if err != nil {
		return market.OrderView{}, err
	}
	if v.Item.StallID != stall.ID {
		return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}

	from := market.OrderSourcesOf(to)
	if len(from) == 0 {
		return market.OrderView{}, fmt.Errorf("no transition into %s: %w", to, market.ErrInvalidState)
	}
	restock := to.ReleasesStock()
	updated, err := s.store.TransitionOrder(ctx, id, from, to, restock)
	if err != nil {
		return market.OrderView{}, err
	}
	restocked := decimal.Zero
	if restock {
		restocked = updated.Weight
	}
	s.publishStatus(ctx, updated, restocked)
	return updated, nil
}

// Receive is the consumer's self-service transition: accepted -> completed.
func (s *OrderService) Receive(ctx context.Context, actor market.Actor, id int64) (market.OrderView, error) {
	if actor.Role != market.RoleConsumer {
		return market.OrderView{}, fmt.Errorf("consumer only: %w", market.ErrForbidden)
	}
	o, err := s.store.Order(ctx, id)
	if err != nil {
		return market.OrderView{}, err
	}
	if o.ConsumerID != actor.ID {
		return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}

	updated, err := s.store.TransitionOrder(ctx, id, []market.OrderStatus{market.OrderAccepted}, market.OrderCompleted, false)
	if err != nil {
		return market.OrderView{}, err
	}
	s.publishStatus(ctx, updated, decimal.Zero)
	return updated, nil
}

// Delete lets a consumer withdraw a still-processing order; the claimed weight
// returns to the inventory line atomically with the delete.
func (s *OrderService) Delete(ctx context.Context, actor market.Actor, id int64) error {
	if actor.Role != market.RoleConsumer {
		return fmt.Errorf("consumer only: %w", market.ErrForbidden)
	}
	o, err := s.store.Order(ctx, id)
	if err != nil {
		return err
	}
	if o.ConsumerID != actor.ID {
		return fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}

	deleted, err := s.store.DeleteOrder(ctx, id)
	if err != nil {
		return err
	}
	s.log.Info("order deleted",
		zap.Int64("order_id", id),
		zap.String("restocked_weight", deleted.Weight.String()))
	s.pub.Publish(market.TopicOrderDeleted, market.NewEnvelope(
		market.EventOrderDeleted, s.producer, traceFrom(ctx), id,
		market.OrderDeletedPayload{OrderID: id, ConsumerID: actor.ID, Restocked: deleted.Weight},
	))
	return nil
}

func (s *OrderService) publishStatus(ctx context.Context, v market.OrderView, restocked decimal.Decimal) {
	s.pub.Publish(market.TopicOrderStatus, market.NewEnvelope(
		market.EventOrderStatus, s.producer, traceFrom(ctx), v.ID,
		market.OrderStatusPayload{
			OrderID:    v.ID,
			Status:     v.Status,
			ConsumerID: v.ConsumerID,
			StallID:    v.Item.StallID,
			Restocked:  restocked,
		},
	))
}
