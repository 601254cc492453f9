package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/katuparan/farm2stall/internal/market"
)

// User is the slice of the identity record the ledger reads for projections.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Role         market.Role
	FarmName     string
	FarmLocation string
}

type memRequest struct {
	market.Request
	StallID int64 // denormalized at creation, survives demand completion
}

// Memory is the in-memory ledger used by tests. It mirrors the Postgres
// semantics exactly: conditional stock movement, guarded transitions, and
// all-or-nothing multi-step mutations under one lock.
type Memory struct {
	mu sync.Mutex

	users     map[int64]User
	stalls    map[int64]market.Stall
	products  map[int64]market.Product
	supplies  map[int64]market.Supply
	demands   map[int64]market.Demand
	requests  map[int64]memRequest
	inventory map[int64]market.StallInventory
	orders    map[int64]market.Order

	nextID int64
}

func NewMemory() *Memory {
	return &Memory{
		users:     map[int64]User{},
		stalls:    map[int64]market.Stall{},
		products:  map[int64]market.Product{},
		supplies:  map[int64]market.Supply{},
		demands:   map[int64]market.Demand{},
		requests:  map[int64]memRequest{},
		inventory: map[int64]market.StallInventory{},
		orders:    map[int64]market.Order{},
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

// ---- Seed helpers (collaborator-owned records) ----

func (m *Memory) SeedUser(u User) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.id()
	}
	m.users[u.ID] = u
	return u.ID
}

func (m *Memory) SeedStall(s market.Stall) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.id()
	}
	m.stalls[s.ID] = s
	return s.ID
}

func (m *Memory) SeedProduct(p market.Product) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.id()
	}
	m.products[p.ID] = p
	return p.ID
}

func (m *Memory) SeedSupply(s market.Supply) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.id()
	}
	m.supplies[s.ID] = s
	return s.ID
}

// ---- Catalog ----

func (m *Memory) Product(ctx context.Context, id int64) (market.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return market.Product{}, fmt.Errorf("product %d: %w", id, market.ErrNotFound)
	}
	return p, nil
}

func (m *Memory) Products(ctx context.Context) ([]market.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]market.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Variant < out[j].Variant
	})
	return out, nil
}

func (m *Memory) StallForUser(ctx context.Context, userID int64) (market.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stalls {
		if s.UserID == userID {
			return s, nil
		}
	}
	return market.Stall{}, fmt.Errorf("stall for user %d: %w", userID, market.ErrNotFound)
}

// ---- Demands ----

func (m *Memory) demandView(d market.Demand) market.DemandView {
	p := m.products[d.ProductID]
	return market.DemandView{Demand: d, ProductName: p.Name, ProductVariant: p.Variant}
}

func (m *Memory) UpsertDemand(ctx context.Context, stallID, productID int64, weight decimal.Decimal) (market.DemandView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return market.DemandView{}, fmt.Errorf("product %d: %w", productID, market.ErrNotFound)
	}
	for id, d := range m.demands {
		if d.StallID == stallID && d.ProductID == productID {
			d.Weight = weight
			m.demands[id] = d
			return m.demandView(d), nil
		}
	}
	d := market.Demand{ID: m.id(), Weight: weight, StallID: stallID, ProductID: productID}
	m.demands[d.ID] = d
	return m.demandView(d), nil
}

func (m *Memory) Demand(ctx context.Context, id int64) (market.Demand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.demands[id]
	if !ok {
		return market.Demand{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	return d, nil
}

func (m *Memory) DemandView(ctx context.Context, id int64) (market.DemandView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.demands[id]
	if !ok {
		return market.DemandView{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	return m.demandView(d), nil
}

func (m *Memory) DemandsByStall(ctx context.Context, stallID int64) ([]market.DemandView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []market.DemandView
	for _, d := range m.demands {
		if d.StallID == stallID {
			out = append(out, m.demandView(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].ProductVariant < out[j].ProductVariant
	})
	return out, nil
}

func (m *Memory) UpdateDemandWeight(ctx context.Context, id int64, weight decimal.Decimal) (market.DemandView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.demands[id]
	if !ok {
		return market.DemandView{}, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	d.Weight = weight
	m.demands[id] = d
	return m.demandView(d), nil
}

func (m *Memory) CompleteDemand(ctx context.Context, id int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.demands[id]; !ok {
		return nil, fmt.Errorf("demand %d: %w", id, market.ErrNotFound)
	}
	var completed []int64
	for rid, r := range m.requests {
		if r.DemandID != id {
			continue
		}
		if r.Status == market.RequestProcessing || r.Status == market.RequestAccepted {
			r.Status = market.RequestCompleted
			completed = append(completed, rid)
		}
		r.DemandID = 0 // demand row is gone; stall context stays denormalized
		m.requests[rid] = r
	}
	delete(m.demands, id)
	return completed, nil
}

// ---- Supplies & requests ----

func (m *Memory) Supply(ctx context.Context, id int64) (market.Supply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.supplies[id]
	if !ok {
		return market.Supply{}, fmt.Errorf("supply %d: %w", id, market.ErrNotFound)
	}
	return s, nil
}

func (m *Memory) SuppliesByFarmer(ctx context.Context, farmerID int64) ([]market.Supply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []market.Supply
	for _, s := range m.supplies {
		if s.FarmerID == farmerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) requestView(r memRequest) market.RequestView {
	supply := m.supplies[r.SupplyID]
	farmer := m.users[supply.FarmerID]
	stall := m.stalls[r.StallID]
	return market.RequestView{
		Request: r.Request,
		Farm: market.Farm{
			FarmerID:     supply.FarmerID,
			Username:     farmer.Username,
			FirstName:    farmer.FirstName,
			LastName:     farmer.LastName,
			FarmName:     farmer.FarmName,
			FarmLocation: farmer.FarmLocation,
		},
		Stall: market.StallContext{
			StallID:        stall.ID,
			StallName:      stall.Name,
			StallLocation:  stall.Location,
			Representative: stall.Representative,
		},
	}
}

func (m *Memory) CreateSupplyAndRequest(
	ctx context.Context,
	farmerID, productID int64,
	weight decimal.Decimal,
	demandID int64,
	price decimal.Decimal,
	method market.Method,
) (market.SupplyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[productID]; !ok {
		return market.SupplyRequest{}, fmt.Errorf("product %d: %w", productID, market.ErrNotFound)
	}
	demand, ok := m.demands[demandID]
	if !ok {
		return market.SupplyRequest{}, fmt.Errorf("demand %d: %w", demandID, market.ErrNotFound)
	}
	supply := market.Supply{Weight: weight, FarmerID: farmerID, ProductID: productID}
	if err := market.MatchSupplyDemand(supply, demand); err != nil {
		return market.SupplyRequest{}, err
	}

	supply.ID = m.id()
	m.supplies[supply.ID] = supply

	r := memRequest{
		Request: market.Request{
			ID:       m.id(),
			Price:    price,
			Method:   method,
			Status:   market.RequestProcessing,
			SupplyID: supply.ID,
			DemandID: demandID,
		},
		StallID: demand.StallID,
	}
	m.requests[r.ID] = r
	return market.SupplyRequest{Supply: supply, Request: m.requestView(r)}, nil
}

func (m *Memory) CreateRequestForSupply(
	ctx context.Context,
	supplyID, demandID int64,
	price decimal.Decimal,
	method market.Method,
) (market.RequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	supply, ok := m.supplies[supplyID]
	if !ok {
		return market.RequestView{}, fmt.Errorf("supply %d: %w", supplyID, market.ErrNotFound)
	}
	demand, ok := m.demands[demandID]
	if !ok {
		return market.RequestView{}, fmt.Errorf("demand %d: %w", demandID, market.ErrNotFound)
	}
	for _, r := range m.requests {
		if r.SupplyID == supplyID {
			return market.RequestView{}, fmt.Errorf("supply %d already consumed by a request: %w", supplyID, market.ErrConflict)
		}
	}
	if err := market.MatchSupplyDemand(supply, demand); err != nil {
		return market.RequestView{}, err
	}

	r := memRequest{
		Request: market.Request{
			ID:       m.id(),
			Price:    price,
			Method:   method,
			Status:   market.RequestProcessing,
			SupplyID: supplyID,
			DemandID: demandID,
		},
		StallID: demand.StallID,
	}
	m.requests[r.ID] = r
	return m.requestView(r), nil
}

func (m *Memory) Request(ctx context.Context, id int64) (market.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return market.Request{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	return r.Request, nil
}

func (m *Memory) RequestView(ctx context.Context, id int64) (market.RequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return market.RequestView{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	return m.requestView(r), nil
}

func (m *Memory) RequestViewsByFarmer(ctx context.Context, farmerID int64) ([]market.RequestView, error) {
	return m.requestViews(func(r memRequest) bool {
		return m.supplies[r.SupplyID].FarmerID == farmerID
	})
}

func (m *Memory) RequestViewsByStall(ctx context.Context, stallID int64) ([]market.RequestView, error) {
	return m.requestViews(func(r memRequest) bool { return r.StallID == stallID })
}

func (m *Memory) requestViews(keep func(memRequest) bool) ([]market.RequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []market.RequestView
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, m.requestView(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) TransitionRequest(ctx context.Context, id int64, from []market.RequestStatus, to market.RequestStatus) (market.RequestView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return market.RequestView{}, fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	allowed := false
	for _, f := range from {
		if r.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return market.RequestView{}, fmt.Errorf("request %d: %s -> %s: %w", id, r.Status, to, market.ErrInvalidState)
	}
	r.Status = to
	m.requests[id] = r
	return m.requestView(r), nil
}

func (m *Memory) DeleteRequest(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %d: %w", id, market.ErrNotFound)
	}
	if r.Status != market.RequestProcessing {
		return fmt.Errorf("request %d is %s: %w", id, r.Status, market.ErrInvalidState)
	}
	delete(m.requests, id)
	return nil
}

// ---- Inventory ----

func (m *Memory) inventoryView(inv market.StallInventory) market.InventoryView {
	p := m.products[inv.ProductID]
	s := m.stalls[inv.StallID]
	return market.InventoryView{
		StallInventory: inv,
		ProductName:    p.Name,
		ProductVariant: p.Variant,
		CurrentPrice:   p.CurrentPrice,
		StallName:      s.Name,
		StallLocation:  s.Location,
	}
}

func (m *Memory) CreateInventory(ctx context.Context, inv market.StallInventory) (market.StallInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[inv.ProductID]; !ok {
		return market.StallInventory{}, fmt.Errorf("product %d: %w", inv.ProductID, market.ErrNotFound)
	}
	for _, other := range m.inventory {
		if other.StallID == inv.StallID && other.ProductID == inv.ProductID &&
			other.Size == inv.Size && other.Type == inv.Type {
			return market.StallInventory{}, fmt.Errorf("inventory line for this stall, product, size and type exists: %w", market.ErrConflict)
		}
	}
	inv.ID = m.id()
	m.inventory[inv.ID] = inv
	return inv, nil
}

func (m *Memory) Inventory(ctx context.Context, id int64) (market.StallInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[id]
	if !ok {
		return market.StallInventory{}, fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	return inv, nil
}

func (m *Memory) InventoryView(ctx context.Context, id int64) (market.InventoryView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[id]
	if !ok {
		return market.InventoryView{}, fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	return m.inventoryView(inv), nil
}

func (m *Memory) InventoryViewsByStall(ctx context.Context, stallID int64) ([]market.InventoryView, error) {
	return m.inventoryViews(func(inv market.StallInventory) bool { return inv.StallID == stallID })
}

func (m *Memory) AllInventoryViews(ctx context.Context) ([]market.InventoryView, error) {
	return m.inventoryViews(func(market.StallInventory) bool { return true })
}

func (m *Memory) inventoryViews(keep func(market.StallInventory) bool) ([]market.InventoryView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []market.InventoryView
	for _, inv := range m.inventory {
		if keep(inv) {
			out = append(out, m.inventoryView(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateInventory(ctx context.Context, id int64, upd market.InventoryUpdate) (market.StallInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[id]
	if !ok {
		return market.StallInventory{}, fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	if upd.Empty() {
		return market.StallInventory{}, &market.ValidationError{Message: "no valid fields to update"}
	}
	if upd.Stocks != nil {
		inv.Stocks = *upd.Stocks
	}
	if upd.Price != nil {
		inv.Price = *upd.Price
	}
	if upd.Size != nil {
		inv.Size = *upd.Size
	}
	if upd.Type != nil {
		inv.Type = *upd.Type
	}
	if upd.Freshness != nil {
		inv.Freshness = *upd.Freshness
	}
	if upd.Class != nil {
		inv.Class = *upd.Class
	}
	for _, other := range m.inventory {
		if other.ID != inv.ID && other.StallID == inv.StallID && other.ProductID == inv.ProductID &&
			other.Size == inv.Size && other.Type == inv.Type {
			return market.StallInventory{}, fmt.Errorf("inventory line for this stall, product, size and type exists: %w", market.ErrConflict)
		}
	}
	m.inventory[id] = inv
	return inv, nil
}

func (m *Memory) DeleteInventory(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inventory[id]; !ok {
		return fmt.Errorf("stall inventory %d: %w", id, market.ErrNotFound)
	}
	for _, o := range m.orders {
		if o.StallInventoryID == id {
			return fmt.Errorf("stall inventory %d has orders: %w", id, market.ErrConflict)
		}
	}
	delete(m.inventory, id)
	return nil
}

// ---- Orders ----

func (m *Memory) orderView(o market.Order) market.OrderView {
	return market.OrderView{Order: o, Item: m.inventoryView(m.inventory[o.StallInventoryID])}
}

func (m *Memory) CreateOrder(ctx context.Context, o market.Order) (market.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[o.StallInventoryID]
	if !ok {
		return market.OrderView{}, fmt.Errorf("stall inventory %d: %w", o.StallInventoryID, market.ErrNotFound)
	}
	if o.Weight.GreaterThan(inv.Stocks) {
		return market.OrderView{}, fmt.Errorf("requested %s, available %s: %w", o.Weight, inv.Stocks, market.ErrInsufficientStock)
	}
	inv.Stocks = inv.Stocks.Sub(o.Weight)
	m.inventory[inv.ID] = inv

	o.ID = m.id()
	o.Status = market.OrderProcessing
	m.orders[o.ID] = o
	return m.orderView(o), nil
}

func (m *Memory) Order(ctx context.Context, id int64) (market.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return market.Order{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}
	return o, nil
}

func (m *Memory) OrderView(ctx context.Context, id int64) (market.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}
	return m.orderView(o), nil
}

func (m *Memory) OrderViewsByConsumer(ctx context.Context, consumerID int64) ([]market.OrderView, error) {
	return m.orderViews(func(o market.Order) bool { return o.ConsumerID == consumerID })
}

func (m *Memory) OrderViewsByStall(ctx context.Context, stallID int64) ([]market.OrderView, error) {
	return m.orderViews(func(o market.Order) bool {
		return m.inventory[o.StallInventoryID].StallID == stallID
	})
}

func (m *Memory) orderViews(keep func(market.Order) bool) ([]market.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []market.OrderView
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, m.orderView(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) TransitionOrder(ctx context.Context, id int64, from []market.OrderStatus, to market.OrderStatus, restock bool) (market.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return market.OrderView{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}
	allowed := false
	for _, f := range from {
		if o.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return market.OrderView{}, fmt.Errorf("order %d: %s -> %s: %w", id, o.Status, to, market.ErrInvalidState)
	}
	o.Status = to
	m.orders[id] = o
	if restock {
		inv := m.inventory[o.StallInventoryID]
		inv.Stocks = inv.Stocks.Add(o.Weight)
		m.inventory[inv.ID] = inv
	}
	return m.orderView(o), nil
}

func (m *Memory) DeleteOrder(ctx context.Context, id int64) (market.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return market.Order{}, fmt.Errorf("order %d: %w", id, market.ErrNotFound)
	}
	if o.Status != market.OrderProcessing {
		return market.Order{}, fmt.Errorf("order %d is %s, only processing orders can be deleted: %w", id, o.Status, market.ErrInvalidState)
	}
	inv := m.inventory[o.StallInventoryID]
	inv.Stocks = inv.Stocks.Add(o.Weight)
	m.inventory[inv.ID] = inv
	delete(m.orders, id)
	return o, nil
}
