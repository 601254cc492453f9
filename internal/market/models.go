package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Role of the authenticated caller, supplied by the identity gateway.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleDisposer Role = "disposer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
	RoleConsumer Role = "consumer"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleFarmer, RoleDisposer, RoleDriver, RoleAdmin, RoleConsumer:
		return r, nil
	default:
		return "", &ValidationError{Message: fmt.Sprintf("unknown role %q", s)}
	}
}

// Actor is the current caller: id + role, nothing else crosses the auth boundary.
type Actor struct {
	ID   int64
	Role Role
}

// Method is the agreed payment method on a request or order.
type Method string

const (
	MethodGCash Method = "gcash"
	MethodCash  Method = "cash"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodGCash, MethodCash:
		return m, nil
	default:
		return "", &ValidationError{Message: "method must be 'gcash' or 'cash'"}
	}
}

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Variant      string          `json:"variant"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// Supply is a farmer's offered quantity of a product. Immutable after creation;
// consumed by exactly one request.
type Supply struct {
	ID        int64           `json:"id"`
	Weight    decimal.Decimal `json:"weight"`
	FarmerID  int64           `json:"farmer_id"`
	ProductID int64           `json:"product_id"`
}

// Demand is a stall's requested quantity of a product. At most one live row
// per (stall, product); deleted only through demand completion.
type Demand struct {
	ID        int64           `json:"id"`
	Weight    decimal.Decimal `json:"weight"`
	StallID   int64           `json:"stall_id"`
	ProductID int64           `json:"product_id"`
}

// Request is a priced proposal linking one supply to one demand.
type Request struct {
	ID       int64           `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Method   Method          `json:"method"`
	Status   RequestStatus   `json:"status"`
	SupplyID int64           `json:"supply_id"`
	DemandID int64           `json:"demand_id"`
}

// StallInventory is a priced stock line a stall offers to consumers.
// Stocks is the contended running balance: orders decrement it on creation and
// restore it when their claim is released.
type StallInventory struct {
	ID        int64           `json:"id"`
	Stocks    decimal.Decimal `json:"stocks"`
	Size      string          `json:"size"`
	Type      string          `json:"type"`
	Freshness string          `json:"freshness"`
	Class     string          `json:"item_class"`
	Price     decimal.Decimal `json:"price"`
	ProductID int64           `json:"product_id"`
	StallID   int64           `json:"stall_id"`
}

// Order is a consumer's purchase claim against a stall inventory line.
// Weight is the quantity removed from the line's stocks while the claim lives.
type Order struct {
	ID               int64           `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           Method          `json:"method"`
	Status           OrderStatus     `json:"status"`
	Weight           decimal.Decimal `json:"weight"`
	StallInventoryID int64           `json:"stall_inventory_id"`
	ConsumerID       int64           `json:"consumer_id"`
}

// Stall is a disposer's single point of sale. One stall per disposer.
type Stall struct {
	ID             int64  `json:"id"`
	Name           string `json:"stall_name"`
	Location       string `json:"stall_location"`
	Representative string `json:"representative"`
	UserID         int64  `json:"user_id"`
}

// Farm is the farmer-side context joined onto request views.
type Farm struct {
	FarmerID     int64  `json:"farmer_id"`
	Username     string `json:"farmer_username"`
	FirstName    string `json:"farmer_first_name"`
	LastName     string `json:"farmer_last_name"`
	FarmName     string `json:"farm_name"`
	FarmLocation string `json:"farm_location"`
}
