package service

import (
	"errors"
	"testing"

	"github.com/katuparan/farm2stall/internal/market"
)

func (e *env) stocks(t *testing.T, invID int64) string {
	t.Helper()
	inv, err := e.m.Inventory(e.ctx, invID)
	if err != nil {
		t.Fatal(err)
	}
	return inv.Stocks.String()
}

func TestOrderLifecycleWithStocks(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")

	o := e.mustOrder(t, inv.ID, "6")
	if got := e.stocks(t, inv.ID); got != "4" {
		t.Fatalf("stocks after order = %s, want 4", got)
	}

	// a second order that does not fit fails and moves nothing
	_, err := e.orders.Create(e.ctx, e.consumer, CreateOrderInput{
		StallInventoryID: inv.ID, Amount: d("1"), Method: market.MethodCash, Weight: d("5"),
	})
	if !errors.Is(err, market.ErrInsufficientStock) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientStock", err)
	}
	if got := e.stocks(t, inv.ID); got != "4" {
		t.Fatalf("failed order moved stocks: %s", got)
	}

	// consumer withdraws; the claim returns in full
	if err := e.orders.Delete(e.ctx, e.consumer, o.ID); err != nil {
		t.Fatal(err)
	}
	if got := e.stocks(t, inv.ID); got != "10" {
		t.Fatalf("stocks after delete = %s, want 10", got)
	}
}

func TestOrderAcceptReceive(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")
	o := e.mustOrder(t, inv.ID, "4")

	if _, err := e.orders.UpdateStatus(e.ctx, e.disposer, o.ID, market.OrderAccepted); err != nil {
		t.Fatal(err)
	}
	v, err := e.orders.Receive(e.ctx, e.consumer, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != market.OrderCompleted {
		t.Fatalf("status = %s, want completed", v.Status)
	}
	// completion keeps the deduction
	if got := e.stocks(t, inv.ID); got != "6" {
		t.Fatalf("stocks = %s, want 6", got)
	}
	// and the order is frozen
	if err := e.orders.Delete(e.ctx, e.consumer, o.ID); !errors.Is(err, market.ErrInvalidState) {
		t.Fatalf("delete completed: got %v, want ErrInvalidState", err)
	}
}

func TestOrderRejectRestocks(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")
	o := e.mustOrder(t, inv.ID, "7")

	v, err := e.orders.UpdateStatus(e.ctx, e.disposer, o.ID, market.OrderRejected)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != market.OrderRejected {
		t.Fatalf("status = %s", v.Status)
	}
	if got := e.stocks(t, inv.ID); got != "10" {
		t.Fatalf("stocks after reject = %s, want 10", got)
	}

	last := e.rec.last(t)
	if last.topic != market.TopicOrderStatus {
		t.Fatalf("topic = %s", last.topic)
	}
	pl := struct {
		Restocked string `json:"restocked_weight"`
	}{}
	if err := lastPayload(last, &pl); err != nil {
		t.Fatal(err)
	}
	if pl.Restocked != "7" {
		t.Fatalf("restocked_weight = %s, want 7", pl.Restocked)
	}
}

func TestOrderCancelRestocks(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")
	o := e.mustOrder(t, inv.ID, "3")

	if _, err := e.orders.UpdateStatus(e.ctx, e.disposer, o.ID, market.OrderCancelled); err != nil {
		t.Fatal(err)
	}
	if got := e.stocks(t, inv.ID); got != "10" {
		t.Fatalf("stocks after cancel = %s, want 10", got)
	}
	// cancelled is terminal
	if _, err := e.orders.UpdateStatus(e.ctx, e.disposer, o.ID, market.OrderAccepted); !errors.Is(err, market.ErrInvalidState) {
		t.Fatalf("revive cancelled: got %v, want ErrInvalidState", err)
	}
}

func TestOrderAuthorization(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")
	o := e.mustOrder(t, inv.ID, "2")

	// only consumers place orders
	if _, err := e.orders.Create(e.ctx, e.disposer, CreateOrderInput{
		StallInventoryID: inv.ID, Amount: d("1"), Method: market.MethodCash, Weight: d("1"),
	}); !errors.Is(err, market.ErrForbidden) {
		t.Fatalf("disposer order: got %v, want ErrForbidden", err)
	}

	// only the stall's disposer transitions
	if _, err := e.orders.UpdateStatus(e.ctx, e.consumer, o.ID, market.OrderAccepted); !errors.Is(err, market.ErrForbidden) {
		t.Fatalf("consumer transition: got %v, want ErrForbidden", err)
	}
	otherID := e.m.SeedUser(otherDisposer())
	e.m.SeedStall(market.Stall{Name: "Other", UserID: otherID})
	other := market.Actor{ID: otherID, Role: market.RoleDisposer}
	if _, err := e.orders.UpdateStatus(e.ctx, other, o.ID, market.OrderAccepted); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("foreign stall transition: got %v, want ErrNotFound", err)
	}

	// a stranger consumer cannot read or delete the order
	stranger := market.Actor{ID: e.m.SeedUser(otherDisposer()), Role: market.RoleConsumer}
	if _, err := e.orders.Get(e.ctx, stranger, o.ID); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("stranger get: got %v, want ErrNotFound", err)
	}
	if err := e.orders.Delete(e.ctx, stranger, o.ID); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("stranger delete: got %v, want ErrNotFound", err)
	}

	// receive is the consumer's move, not the disposer's
	if _, err := e.orders.Receive(e.ctx, e.disposer, o.ID); !errors.Is(err, market.ErrForbidden) {
		t.Fatalf("disposer receive: got %v, want ErrForbidden", err)
	}
	// and only from accepted
	if _, err := e.orders.Receive(e.ctx, e.consumer, o.ID); !errors.Is(err, market.ErrInvalidState) {
		t.Fatalf("receive processing order: got %v, want ErrInvalidState", err)
	}
}

func TestOrderValidation(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")

	var ve *market.ValidationError
	if _, err := e.orders.Create(e.ctx, e.consumer, CreateOrderInput{
		StallInventoryID: inv.ID, Amount: d("1"), Method: market.MethodCash, Weight: d("0"),
	}); !errors.As(err, &ve) {
		t.Fatalf("zero weight: got %v", err)
	}
	if _, err := e.orders.Create(e.ctx, e.consumer, CreateOrderInput{
		StallInventoryID: inv.ID, Amount: d("-1"), Method: market.MethodCash, Weight: d("1"),
	}); !errors.As(err, &ve) {
		t.Fatalf("negative amount: got %v", err)
	}
	if _, err := e.orders.Create(e.ctx, e.consumer, CreateOrderInput{
		StallInventoryID: 999, Amount: d("1"), Method: market.MethodCash, Weight: d("1"),
	}); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("unknown line: got %v, want ErrNotFound", err)
	}
}
