package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/market"
)

// InventoryStore is the slice of the ledger the inventory engine uses.
type InventoryStore interface {
	StallResolver
	Product(ctx context.Context, id int64) (market.Product, error)
	Products(ctx context.Context) ([]market.Product, error)
	CreateInventory(ctx context.Context, inv market.StallInventory) (market.StallInventory, error)
	Inventory(ctx context.Context, id int64) (market.StallInventory, error)
	InventoryView(ctx context.Context, id int64) (market.InventoryView, error)
	InventoryViewsByStall(ctx context.Context, stallID int64) ([]market.InventoryView, error)
	AllInventoryViews(ctx context.Context) ([]market.InventoryView, error)
	UpdateInventory(ctx context.Context, id int64, upd market.InventoryUpdate) (market.StallInventory, error)
	DeleteInventory(ctx context.Context, id int64) error
}

type CreateInventoryInput struct {
	ProductID int64
	Stocks    decimal.Decimal
	Size      string
	Type      string
	Freshness string
	Class     string
	Price     decimal.Decimal
}

type InventoryService struct {
	store InventoryStore
	log   *zap.Logger
}

func NewInventoryService(store InventoryStore, log *zap.Logger) *InventoryService {
	return &InventoryService{store: store, log: log}
}

func (s *InventoryService) stallFor(ctx context.Context, actor market.Actor) (market.Stall, error) {
	if actor.Role != market.RoleDisposer {
		return market.Stall{}, fmt.Errorf("disposer only: %w", market.ErrForbidden)
	}
	stall, err := s.store.StallForUser(ctx, actor.ID)
	if errors.Is(err, market.ErrNotFound) {
		return market.Stall{}, errNoStall
	}
	return stall, err
}

func (s *InventoryService) Create(ctx context.Context, actor market.Actor, in CreateInventoryInput) (market.StallInventory, error) {
	stall, err := s.stallFor(ctx, actor)
	if err != nil {
		return market.StallInventory{}, err
	}
	if in.Stocks.Sign() < 0 {
		return market.StallInventory{}, &market.ValidationError{Message: "stocks must be >= 0"}
	}
	if err := market.NonNegativeAmount("price", in.Price); err != nil {
		return market.StallInventory{}, err
	}
	if in.Size == "" || in.Type == "" || in.Freshness == "" || in.Class == "" {
		return market.StallInventory{}, &market.ValidationError{Message: "size, type, freshness, class are all required"}
	}
	if _, err := s.store.Product(ctx, in.ProductID); err != nil {
		return market.StallInventory{}, err
	}

	return s.store.CreateInventory(ctx, market.StallInventory{
		Stocks:    in.Stocks,
		Size:      in.Size,
		Type:      in.Type,
		Freshness: in.Freshness,
		Class:     in.Class,
		Price:     in.Price,
		ProductID: in.ProductID,
		StallID:   stall.ID,
	})
}

// List shows a disposer their own stock lines; every other authenticated role
// browses the full marketplace listing.
func (s *InventoryService) List(ctx context.Context, actor market.Actor) ([]market.InventoryView, error) {
	if actor.Role == market.RoleDisposer {
		stall, err := s.store.StallForUser(ctx, actor.ID)
		if errors.Is(err, market.ErrNotFound) {
			return []market.InventoryView{}, nil
		}
		if err != nil {
			return nil, err
		}
		return s.store.InventoryViewsByStall(ctx, stall.ID)
	}
	return s.store.AllInventoryViews(ctx)
}

func (s *InventoryService) Get(ctx context.Context, actor market.Actor, id int64) (market.InventoryView, error) {
	return s.store.InventoryView(ctx, id)
}

func (s *InventoryService) Update(ctx context.Context, actor market.Actor, id int64, upd market.InventoryUpdate) (market.StallInventory, error) {
	stall, err := s.stallFor(ctx, actor)
	if err != nil {
		return market.StallInventory{}, err
	}
	if err := upd.Validate(); err != nil {
		return market.StallInventory{}, err
	}
	inv, err := s.store.Inventory(ctx, id)
	if err != nil {
		return market.StallInventory{}, err
	}
	if inv.StallID != stall.ID {
		return market.StallInventory{}, fmt.Errorf("stall inventory %d: %w", id, market.ErrForbidden)
	}
	if upd.Stocks != nil {
		s.log.Info("direct stock edit",
			zap.Int64("stall_inventory_id", id),
			zap.String("from", inv.Stocks.String()),
			zap.String("to", upd.Stocks.String()))
	}
	return s.store.UpdateInventory(ctx, id, upd)
}

func (s *InventoryService) Delete(ctx context.Context, actor market.Actor, id int64) error {
	stall, err := s.stallFor(ctx, actor)
	if err != nil {
		return err
	}
	inv, err := s.store.Inventory(ctx, id)
	if err != nil {
		return err
	}
	if inv.StallID != stall.ID {
		return fmt.Errorf("stall inventory %d: %w", id, market.ErrForbidden)
	}
	return s.store.DeleteInventory(ctx, id)
}

// Products is the read-only catalog lookup backing the price reference.
func (s *InventoryService) Products(ctx context.Context) ([]market.Product, error) {
	return s.store.Products(ctx)
}
