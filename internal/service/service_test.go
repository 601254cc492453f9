package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katuparan/farm2stall/internal/market"
	"github.com/katuparan/farm2stall/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recorder captures published envelopes for assertions.
type recorder struct {
	events []recorded
}

type recorded struct {
	topic string
	env   market.Envelope
}

func (r *recorder) Publish(topic string, env market.Envelope) {
	r.events = append(r.events, recorded{topic: topic, env: env})
}

func (r *recorder) last(t *testing.T) recorded {
	t.Helper()
	if len(r.events) == 0 {
		t.Fatal("no events published")
	}
	return r.events[len(r.events)-1]
}

type env struct {
	ctx context.Context
	m   *store.Memory
	rec *recorder

	demands   *DemandService
	requests  *RequestService
	orders    *OrderService
	inventory *InventoryService

	farmer   market.Actor
	disposer market.Actor
	consumer market.Actor
	driver   market.Actor

	stallID   int64
	productID int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m := store.NewMemory()
	rec := &recorder{}
	log := zap.NewNop()

	e := &env{
		ctx:       context.Background(),
		m:         m,
		rec:       rec,
		demands:   NewDemandService(m, rec, "test", log),
		requests:  NewRequestService(m, rec, "test", log),
		orders:    NewOrderService(m, rec, "test", log),
		inventory: NewInventoryService(m, log),
	}

	farmerID := m.SeedUser(store.User{Username: "mang_tomas", Role: market.RoleFarmer, FarmName: "Tomas Farm", FarmLocation: "Benguet"})
	disposerID := m.SeedUser(store.User{Username: "aling_nena", Role: market.RoleDisposer})
	consumerID := m.SeedUser(store.User{Username: "juan", Role: market.RoleConsumer})
	driverID := m.SeedUser(store.User{Username: "kuya_ben", Role: market.RoleDriver})
	e.stallID = m.SeedStall(market.Stall{Name: "Nena's Stall", Location: "Baguio Market", Representative: "Nena", UserID: disposerID})
	e.productID = m.SeedProduct(market.Product{Name: "Tomato", Variant: "Native", CurrentPrice: d("45")})

	e.farmer = market.Actor{ID: farmerID, Role: market.RoleFarmer}
	e.disposer = market.Actor{ID: disposerID, Role: market.RoleDisposer}
	e.consumer = market.Actor{ID: consumerID, Role: market.RoleConsumer}
	e.driver = market.Actor{ID: driverID, Role: market.RoleDriver}
	return e
}

func lastPayload(r recorded, v any) error {
	return json.Unmarshal(r.env.Payload, v)
}

func otherDisposer() store.User {
	return store.User{Username: "other_disposer", Role: market.RoleDisposer}
}

func (e *env) mustDemand(t *testing.T, weight string) market.DemandView {
	t.Helper()
	v, err := e.demands.Upsert(e.ctx, e.disposer, e.productID, d(weight))
	if err != nil {
		t.Fatalf("upsert demand: %v", err)
	}
	return v
}

func (e *env) mustSupplyRequest(t *testing.T, weight string, demandID int64) market.SupplyRequest {
	t.Helper()
	sr, err := e.requests.CreateWithSupply(e.ctx, e.farmer, CreateSupplyInput{
		ProductID: e.productID, Weight: d(weight), DemandID: demandID,
		Price: d("45"), Method: market.MethodCash,
	})
	if err != nil {
		t.Fatalf("create supply+request: %v", err)
	}
	return sr
}

func (e *env) mustInventory(t *testing.T, stocks string) market.StallInventory {
	t.Helper()
	inv, err := e.inventory.Create(e.ctx, e.disposer, CreateInventoryInput{
		ProductID: e.productID, Stocks: d(stocks),
		Size: "medium", Type: "fresh", Freshness: "new", Class: "A", Price: d("50"),
	})
	if err != nil {
		t.Fatalf("create inventory: %v", err)
	}
	return inv
}

func (e *env) mustOrder(t *testing.T, invID int64, weight string) market.OrderView {
	t.Helper()
	v, err := e.orders.Create(e.ctx, e.consumer, CreateOrderInput{
		StallInventoryID: invID, Amount: d("100"), Method: market.MethodGCash, Weight: d(weight),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return v
}
