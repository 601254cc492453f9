package market

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventRequestCreated  = "RequestCreated"
	EventRequestStatus   = "RequestStatusChanged"
	EventRequestDeleted  = "RequestDeleted"
	EventDemandCompleted = "DemandCompleted"
	EventOrderCreated    = "OrderCreated"
	EventOrderStatus     = "OrderStatusChanged"
	EventOrderDeleted    = "OrderDeleted"
)

// Envelope wraps every lifecycle event published to the bus.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id"` // aggregate id, also the partition key
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope builds a v1 envelope around an already-marshaled payload.
func NewEnvelope(eventType, producer, traceID string, correlationID int64, payload any) Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err) // payload types are ours; a marshal failure is a programming error
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(correlationID, 10),
		Payload:       b,
	}
}

// PartitionKey keeps all events of one aggregate in order.
func (e Envelope) PartitionKey() []byte { return []byte(e.CorrelationID) }

// ---- Payloads ----
//
// Status payloads carry the owning ids so the projector can refresh the
// authorization-aware status cache without a database read.

type RequestCreatedPayload struct {
	RequestID int64         `json:"request_id"`
	SupplyID  int64         `json:"supply_id"`
	DemandID  int64         `json:"demand_id"`
	FarmerID  int64         `json:"farmer_id"`
	StallID   int64         `json:"stall_id"`
	Status    RequestStatus `json:"status"`
}

type RequestStatusPayload struct {
	RequestID int64         `json:"request_id"`
	Status    RequestStatus `json:"status"`
	FarmerID  int64         `json:"farmer_id"`
	StallID   int64         `json:"stall_id"`
}

type RequestDeletedPayload struct {
	RequestID int64 `json:"request_id"`
	FarmerID  int64 `json:"farmer_id"`
}

type DemandCompletedPayload struct {
	DemandID   int64   `json:"demand_id"`
	StallID    int64   `json:"stall_id"`
	RequestIDs []int64 `json:"request_ids"`
}

type OrderCreatedPayload struct {
	OrderID     int64           `json:"order_id"`
	InventoryID int64           `json:"stall_inventory_id"`
	ConsumerID  int64           `json:"consumer_id"`
	StallID     int64           `json:"stall_id"`
	Weight      decimal.Decimal `json:"weight"`
	Amount      decimal.Decimal `json:"amount"`
	Status      OrderStatus     `json:"status"`
}

type OrderStatusPayload struct {
	OrderID    int64           `json:"order_id"`
	Status     OrderStatus     `json:"status"`
	ConsumerID int64           `json:"consumer_id"`
	StallID    int64           `json:"stall_id"`
	Restocked  decimal.Decimal `json:"restocked_weight"` // zero unless the transition released the claim
}

type OrderDeletedPayload struct {
	OrderID    int64           `json:"order_id"`
	ConsumerID int64           `json:"consumer_id"`
	Restocked  decimal.Decimal `json:"restocked_weight"`
}
