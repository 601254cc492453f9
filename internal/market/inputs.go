package market

import "github.com/shopspring/decimal"

// InventoryUpdate is a partial update of a stock line; nil fields are left
// untouched. Direct stock edits reset the conservation baseline for the line.
type InventoryUpdate struct {
	Stocks    *decimal.Decimal `json:"stocks,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Size      *string          `json:"size,omitempty"`
	Type      *string          `json:"type,omitempty"`
	Freshness *string          `json:"freshness,omitempty"`
	Class     *string          `json:"item_class,omitempty"`
}

func (u InventoryUpdate) Empty() bool {
	return u.Stocks == nil && u.Price == nil && u.Size == nil &&
		u.Type == nil && u.Freshness == nil && u.Class == nil
}

func (u InventoryUpdate) Validate() error {
	if u.Empty() {
		return &ValidationError{Message: "no valid fields to update"}
	}
	if u.Stocks != nil && u.Stocks.Sign() < 0 {
		return &ValidationError{Message: "stocks must be >= 0"}
	}
	if u.Price != nil && u.Price.Sign() < 0 {
		return &ValidationError{Message: "price must be >= 0"}
	}
	return nil
}
