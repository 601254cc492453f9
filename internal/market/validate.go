package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MatchSupplyDemand checks that a supply may back a request against a demand:
// same product, and the offered weight does not exceed the demanded weight.
// Equal weights are allowed. Pure; runs before any mutation and again inside
// the creating transaction on the snapshot read there.
func MatchSupplyDemand(s Supply, d Demand) error {
	if s.ProductID != d.ProductID {
		return &ValidationError{Message: "demand product does not match supply product"}
	}
	if s.Weight.GreaterThan(d.Weight) {
		return &ValidationError{Message: "supplied weight cannot exceed demanded weight"}
	}
	return nil
}

// CheckStock checks that an order for the given weight fits the line's current
// stocks. The durable store repeats this as a conditional decrement; this pure
// form serves pre-validation and the in-memory store.
func CheckStock(inv StallInventory, weight decimal.Decimal) error {
	if weight.GreaterThan(inv.Stocks) {
		return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientStock, weight, inv.Stocks)
	}
	return nil
}

// PositiveWeight validates a weight field shared by supplies, demands and orders.
func PositiveWeight(w decimal.Decimal) error {
	if w.Sign() <= 0 {
		return &ValidationError{Message: "weight must be > 0"}
	}
	return nil
}

// NonNegativeAmount validates a money field (price, amount).
func NonNegativeAmount(name string, a decimal.Decimal) error {
	if a.Sign() < 0 {
		return &ValidationError{Message: name + " must be >= 0"}
	}
	return nil
}
