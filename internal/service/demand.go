package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/market"
)

// DemandStore is the slice of the ledger the demand engine uses.
type DemandStore interface {
	StallResolver
	Product(ctx context.Context, id int64) (market.Product, error)
	UpsertDemand(ctx context.Context, stallID, productID int64, weight decimal.Decimal) (market.DemandView, error)
	Demand(ctx context.Context, id int64) (market.Demand, error)
	DemandView(ctx context.Context, id int64) (market.DemandView, error)
	DemandsByStall(ctx context.Context, stallID int64) ([]market.DemandView, error)
	UpdateDemandWeight(ctx context.Context, id int64, weight decimal.Decimal) (market.DemandView, error)
	CompleteDemand(ctx context.Context, id int64) ([]int64, error)
}

type DemandService struct {
	store    DemandStore
	pub      Publisher
	producer string
	log      *zap.Logger
}

func NewDemandService(store DemandStore, pub Publisher, producer string, log *zap.Logger) *DemandService {
	return &DemandService{store: store, pub: pub, producer: producer, log: log}
}

func (s *DemandService) stallFor(ctx context.Context, actor market.Actor) (market.Stall, error) {
	if actor.Role != market.RoleDisposer {
		return market.Stall{}, fmt.Errorf("disposer only: %w", market.ErrForbidden)
	}
	stall, err := s.store.StallForUser(ctx, actor.ID)
	if errors.Is(err, market.ErrNotFound) {
		return market.Stall{}, errNoStall
	}
	return stall, err
}

// Upsert saves the stall's demand for a product: at most one live demand per
// (stall, product), so a second save replaces the weight.
func (s *DemandService) Upsert(ctx context.Context, actor market.Actor, productID int64, weight decimal.Decimal) (market.DemandView, error) {
	stall, err := s.stallFor(ctx, actor)
	if err != nil {
		return market.DemandView{}, err
	}
	if err := market.PositiveWeight(weight); err != nil {
		return market.DemandView{}, err
	}
	if _, err := s.store.Product(ctx, productID); err != nil {
		return market.DemandView{}, err
	}
	return s.store.UpsertDemand(ctx, stall.ID, productID, weight)
}

func (s *DemandService) List(ctx context.Context, actor market.Actor) ([]market.DemandView, error) {
	if actor.Role != market.RoleDisposer {
		return nil, fmt.Errorf("disposer only: %w", market.ErrForbidden)
	}
	stall, err := s.store.StallForUser(ctx, actor.ID)
	if errors.Is(err, market.ErrNotFound) {
		return []market.DemandView{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.DemandsByStall(ctx, stall.ID)
}

func (s *DemandService) Get(ctx context.Context, actor market.Actor, id int64) (market.DemandView, error) {
	stall, err := s.stallFor(ctx, actor)
	if err != nil {
		return market.DemandView{}, err
	}
	v, err := s.store.DemandView(ctx, id)
	if err != nil {
		return market.DemandView{}, err
	}
	if v.StallID != stall.ID {
		return market.DemandView{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	return v, nil
}

func (s *DemandService) UpdateWeight(ctx context.Context, actor market.Actor, id int64, weight decimal.Decimal) (market.DemandView, error) {
	stall, err := s.stallFor(ctx, actor)
	if err != nil {
		return market.DemandView{}, err
	}
	if err := market.PositiveWeight(weight); err != nil {
		return market.DemandView{}, err
	}
	d, err := s.store.Demand(ctx, id)
	if err != nil {
		return market.DemandView{}, err
	}
	if d.StallID != stall.ID {
		return market.DemandView{}, fmt.Errorf("demand %d: %w", id, market.ErrForbidden)
	}
	return s.store.UpdateDemandWeight(ctx, id, weight)
}

// Complete is the only path that removes a demand: every linked request still
// in a live state is completed and the demand row deleted, as one atomic unit.
// The ids of the completed requests come back so callers (and the projector,
// via the event payload) can invalidate their cached status.
func (s *DemandService) Complete(ctx context.Context, actor market.Actor, id int64) ([]int64, error) {
	stall, err := s.stallFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	d, err := s.store.Demand(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.StallID != stall.ID {
		return nil, fmt.Errorf("demand %d: %w", id, market.ErrForbidden)
	}

	completed, err := s.store.CompleteDemand(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("demand completed",
		zap.Int64("demand_id", id),
		zap.Int64("stall_id", stall.ID),
		zap.Int("completed_requests", len(completed)))
	s.pub.Publish(market.TopicDemandCompleted, market.NewEnvelope(
		market.EventDemandCompleted, s.producer, traceFrom(ctx), id,
		market.DemandCompletedPayload{DemandID: id, StallID: stall.ID, RequestIDs: completed},
	))
	return completed, nil
}
