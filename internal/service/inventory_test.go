package service

import (
	"errors"
	"testing"

	"github.com/katuparan/farm2stall/internal/market"
)

func TestInventoryCreateValidation(t *testing.T) {
	e := newEnv(t)

	var ve *market.ValidationError
	if _, err := e.inventory.Create(e.ctx, e.disposer, CreateInventoryInput{
		ProductID: e.productID, Stocks: d("-1"),
		Size: "m", Type: "t", Freshness: "f", Class: "a", Price: d("10"),
	}); !errors.As(err, &ve) {
		t.Fatalf("negative stocks: got %v", err)
	}
	if _, err := e.inventory.Create(e.ctx, e.disposer, CreateInventoryInput{
		ProductID: e.productID, Stocks: d("5"),
		Size: "", Type: "t", Freshness: "f", Class: "a", Price: d("10"),
	}); !errors.As(err, &ve) {
		t.Fatalf("missing size: got %v", err)
	}
	if _, err := e.inventory.Create(e.ctx, e.consumer, CreateInventoryInput{
		ProductID: e.productID, Stocks: d("5"),
		Size: "m", Type: "t", Freshness: "f", Class: "a", Price: d("10"),
	}); !errors.Is(err, market.ErrForbidden) {
		t.Fatalf("consumer create: got %v, want ErrForbidden", err)
	}
	if _, err := e.inventory.Create(e.ctx, e.disposer, CreateInventoryInput{
		ProductID: 999, Stocks: d("5"),
		Size: "m", Type: "t", Freshness: "f", Class: "a", Price: d("10"),
	}); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("unknown product: got %v, want ErrNotFound", err)
	}
}

func TestInventoryListPerRole(t *testing.T) {
	e := newEnv(t)
	e.mustInventory(t, "10")

	// another stall with its own line
	otherID := e.m.SeedUser(otherDisposer())
	otherStall := e.m.SeedStall(market.Stall{Name: "Other", UserID: otherID})
	if _, err := e.m.CreateInventory(e.ctx, market.StallInventory{
		Stocks: d("3"), Size: "s", Type: "t", Freshness: "f", Class: "a",
		Price: d("20"), ProductID: e.productID, StallID: otherStall,
	}); err != nil {
		t.Fatal(err)
	}

	own, err := e.inventory.List(e.ctx, e.disposer)
	if err != nil || len(own) != 1 {
		t.Fatalf("disposer list: %v, %d lines, want 1", err, len(own))
	}
	all, err := e.inventory.List(e.ctx, e.consumer)
	if err != nil || len(all) != 2 {
		t.Fatalf("consumer list: %v, %d lines, want 2", err, len(all))
	}
}

func TestInventoryUpdateOwnership(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")

	otherID := e.m.SeedUser(otherDisposer())
	e.m.SeedStall(market.Stall{Name: "Other", UserID: otherID})
	other := market.Actor{ID: otherID, Role: market.RoleDisposer}

	price := d("99")
	if _, err := e.inventory.Update(e.ctx, other, inv.ID, market.InventoryUpdate{Price: &price}); !errors.Is(err, market.ErrForbidden) {
		t.Fatalf("foreign update: got %v, want ErrForbidden", err)
	}

	updated, err := e.inventory.Update(e.ctx, e.disposer, inv.ID, market.InventoryUpdate{Price: &price})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Price.Equal(price) {
		t.Fatalf("price = %s, want 99", updated.Price)
	}

	// an empty patch is rejected
	var ve *market.ValidationError
	if _, err := e.inventory.Update(e.ctx, e.disposer, inv.ID, market.InventoryUpdate{}); !errors.As(err, &ve) {
		t.Fatalf("empty patch: got %v", err)
	}
}

func TestInventoryDelete(t *testing.T) {
	e := newEnv(t)
	inv := e.mustInventory(t, "10")
	e.mustOrder(t, inv.ID, "2")

	if err := e.inventory.Delete(e.ctx, e.disposer, inv.ID); !errors.Is(err, market.ErrConflict) {
		t.Fatalf("delete line with orders: got %v, want ErrConflict", err)
	}
}
