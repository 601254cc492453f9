package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/market"
)

// RequestStore is the slice of the ledger the request engine uses.
type RequestStore interface {
	StallResolver
	Supply(ctx context.Context, id int64) (market.Supply, error)
	SuppliesByFarmer(ctx context.Context, farmerID int64) ([]market.Supply, error)
	CreateSupplyAndRequest(ctx context.Context, farmerID, productID int64, weight decimal.Decimal, demandID int64, price decimal.Decimal, method market.Method) (market.SupplyRequest, error)
	CreateRequestForSupply(ctx context.Context, supplyID, demandID int64, price decimal.Decimal, method market.Method) (market.RequestView, error)
	RequestView(ctx context.Context, id int64) (market.RequestView, error)
	RequestViewsByFarmer(ctx context.Context, farmerID int64) ([]market.RequestView, error)
	RequestViewsByStall(ctx context.Context, stallID int64) ([]market.RequestView, error)
	TransitionRequest(ctx context.Context, id int64, from []market.RequestStatus, to market.RequestStatus) (market.RequestView, error)
	DeleteRequest(ctx context.Context, id int64) error
}

// CreateSupplyInput is the paired supply+request creation payload.
type CreateSupplyInput struct {
	ProductID int64
	Weight    decimal.Decimal
	DemandID  int64
	Price     decimal.Decimal
	Method    market.Method
}

// BindSupplyInput binds an already-registered supply to a demand.
type BindSupplyInput struct {
	SupplyID int64
	DemandID int64
	Price    decimal.Decimal
	Method   market.Method
}

type RequestService struct {
	store    RequestStore
	pub      Publisher
	producer string
	log      *zap.Logger
}

func NewRequestService(store RequestStore, pub Publisher, producer string, log *zap.Logger) *RequestService {
	return &RequestService{store: store, pub: pub, producer: producer, log: log}
}

func (s *RequestService) validateOffer(weight, price decimal.Decimal) error {
	if err := market.PositiveWeight(weight); err != nil {
		return err
	}
	return market.NonNegativeAmount("price", price)
}

// CreateWithSupply persists a farmer's supply and its linked request in one
// transaction, validated against the target demand.
func (s *RequestService) CreateWithSupply(ctx context.Context, actor market.Actor, in CreateSupplyInput) (market.SupplyRequest, error) {
	if actor.Role != market.RoleFarmer {
		return market.SupplyRequest{}, fmt.Errorf("farmer only: %w", market.ErrForbidden)
	}
	if err := s.validateOffer(in.Weight, in.Price); err != nil {
		return market.SupplyRequest{}, err
	}

	out, err := s.store.CreateSupplyAndRequest(ctx, actor.ID, in.ProductID, in.Weight, in.DemandID, in.Price, in.Method)
	if err != nil {
		return market.SupplyRequest{}, err
	}
	s.publishCreated(ctx, out.Request)
	return out, nil
}

// BindSupply creates a request for an existing supply the farmer owns. A
// supply backs at most one request; a second bind returns Conflict.
func (s *RequestService) BindSupply(ctx context.Context, actor market.Actor, in BindSupplyInput) (market.RequestView, error) {
	if actor.Role != market.RoleFarmer {
		return market.RequestView{}, fmt.Errorf("farmer only: %w", market.ErrForbidden)
	}
	if err := market.NonNegativeAmount("price", in.Price); err != nil {
		return market.RequestView{}, err
	}
	supply, err := s.store.Supply(ctx, in.SupplyID)
	if err != nil {
		return market.RequestView{}, err
	}
	if supply.FarmerID != actor.ID {
		return market.RequestView{}, fmt.Errorf("not your supply: %w", market.ErrForbidden)
	}

	view, err := s.store.CreateRequestForSupply(ctx, in.SupplyID, in.DemandID, in.Price, in.Method)
	if err != nil {
		return market.RequestView{}, err
	}
	s.publishCreated(ctx, view)
	return view, nil
}

func (s *RequestService) publishCreated(ctx context.Context, v market.RequestView) {
	s.pub.Publish(market.TopicRequestCreated, market.NewEnvelope(
		market.EventRequestCreated, s.producer, traceFrom(ctx), v.ID,
		market.RequestCreatedPayload{
			RequestID: v.ID,
			SupplyID:  v.SupplyID,
			DemandID:  v.DemandID,
			FarmerID:  v.Farm.FarmerID,
			StallID:   v.Stall.StallID,
			Status:    v.Status,
		},
	))
}

func (s *RequestService) Supplies(ctx context.Context, actor market.Actor) ([]market.Supply, error) {
	if actor.Role != market.RoleFarmer {
		return nil, fmt.Errorf("farmer only: %w", market.ErrForbidden)
	}
	return s.store.SuppliesByFarmer(ctx, actor.ID)
}

// List shows a farmer the requests backed by their supplies and a disposer the
// requests targeting their stall. No other role may list.
func (s *RequestService) List(ctx context.Context, actor market.Actor) ([]market.RequestView, error) {
	switch actor.Role {
	case market.RoleFarmer:
		return s.store.RequestViewsByFarmer(ctx, actor.ID)
	case market.RoleDisposer:
		stall, err := s.store.StallForUser(ctx, actor.ID)
		if errors.Is(err, market.ErrNotFound) {
			return []market.RequestView{}, nil
		}
		if err != nil {
			return nil, err
		}
		return s.store.RequestViewsByStall(ctx, stall.ID)
	default:
		return nil, market.ErrForbidden
	}
}

func (s *RequestService) Get(ctx context.Context, actor market.Actor, id int64) (market.RequestView, error) {
	v, err := s.store.RequestView(ctx, id)
	if err != nil {
		return market.RequestView{}, err
	}
	switch actor.Role {
	case market.RoleFarmer:
		if v.Farm.FarmerID != actor.ID {
			return market.RequestView{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
		}
	case market.RoleDisposer:
		stall, err := s.store.StallForUser(ctx, actor.ID)
		if err != nil || v.Stall.StallID != stall.ID {
			return market.RequestView{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
		}
	default:
		return market.RequestView{}, market.ErrForbidden
	}
	return v, nil
}

// UpdateStatus is the disposer-controlled transition. Terminal statuses accept
// no further update, and nothing transitions back to processing.
func (s *RequestService) UpdateStatus(ctx context.Context, actor market.Actor, id int64, to market.RequestStatus) (market.RequestView, error) {
	if actor.Role != market.RoleDisposer {
		return market.RequestView{}, fmt.Errorf("disposer only: %w", market.ErrForbidden)
	}
	stall, err := s.store.StallForUser(ctx, actor.ID)
	if errors.Is(err, market.ErrNotFound) {
		return market.RequestView{}, errNoStall
	}
	if err != nil {
		return market.RequestView{}, err
	}
	v, err := s.store.RequestView(ctx, id)
	if err != nil {
		return market.RequestView{}, err
	}
	if v.Stall.StallID != stall.ID {
		return market.RequestView{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}

	from := market.RequestSourcesOf(to)
	if len(from) == 0 {
		return market.RequestView{}, fmt.Errorf("no transition into %s: %w", to, market.ErrInvalidState)
	}
	updated, err := s.store.TransitionRequest(ctx, id, from, to)
	if err != nil {
		return market.RequestView{}, err
	}
	s.pub.Publish(market.TopicRequestStatus, market.NewEnvelope(
		market.EventRequestStatus, s.producer, traceFrom(ctx), id,
		market.RequestStatusPayload{
			RequestID: id,
			Status:    updated.Status,
			FarmerID:  updated.Farm.FarmerID,
			StallID:   updated.Stall.StallID,
		},
	))
	return updated, nil
}

// Delete lets a farmer withdraw their own request while it is still processing.
func (s *RequestService) Delete(ctx context.Context, actor market.Actor, id int64) error {
	if actor.Role != market.RoleFarmer {
		return fmt.Errorf("farmer only: %w", market.ErrForbidden)
	}
	v, err := s.store.RequestView(ctx, id)
	if err != nil {
		return err
	}
	if v.Farm.FarmerID != actor.ID {
		return fmt.Errorf("not your request: %w", market.ErrForbidden)
	}
	if err := s.store.DeleteRequest(ctx, id); err != nil {
		return err
	}
	s.pub.Publish(market.TopicRequestDeleted, market.NewEnvelope(
		market.EventRequestDeleted, s.producer, traceFrom(ctx), id,
		market.RequestDeletedPayload{RequestID: id, FarmerID: actor.ID},
	))
	return nil
}
