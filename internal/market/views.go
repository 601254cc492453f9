package market

import "github.com/shopspring/decimal"

// Read projections joining lifecycle records with their surrounding context.
// Pure data, assembled by the store in the same query that reads the record.

// StallContext is the stall-side slice joined onto request views.
type StallContext struct {
	StallID        int64  `json:"stall_id"`
	StallName      string `json:"stall_name"`
	StallLocation  string `json:"stall_location"`
	Representative string `json:"stall_representative"`
}

// RequestView is a request with its farm and stall context.
type RequestView struct {
	Request
	Farm  Farm         `json:"farm"`
	Stall StallContext `json:"stall"`
}

// SupplyRequest is the result of the paired supply+request creation flow.
type SupplyRequest struct {
	Supply  Supply      `json:"supply"`
	Request RequestView `json:"request"`
}

// DemandView is a demand with its product identity.
type DemandView struct {
	Demand
	ProductName    string `json:"product_name"`
	ProductVariant string `json:"product_variant"`
}

// InventoryView is a stock line with product and stall context, the shape
// consumers browse.
type InventoryView struct {
	StallInventory
	ProductName    string          `json:"product_name"`
	ProductVariant string          `json:"product_variant"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	StallName      string          `json:"stall_name"`
	StallLocation  string          `json:"stall_location"`
}

// OrderView is an order with its inventory, product and stall context.
type OrderView struct {
	Order
	Item InventoryView `json:"item"`
}
