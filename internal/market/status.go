package market

import "strings"

type RequestStatus string

const (
	RequestProcessing RequestStatus = "processing"
	RequestAccepted   RequestStatus = "accepted"
	RequestRejected   RequestStatus = "rejected"
	RequestCompleted  RequestStatus = "completed"
)

// rejected and completed are terminal; accepted may still be completed.
var requestNext = map[RequestStatus]map[RequestStatus]bool{
	RequestProcessing: {RequestAccepted: true, RequestRejected: true, RequestCompleted: true},
	RequestAccepted:   {RequestCompleted: true},
	RequestRejected:   {},
	RequestCompleted:  {},
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case RequestProcessing, RequestAccepted, RequestRejected, RequestCompleted:
		return st, nil
	default:
		return "", &ValidationError{Message: "status must be one of processing, accepted, rejected, completed"}
	}
}

func (s RequestStatus) CanTransition(to RequestStatus) bool {
	return requestNext[s][to]
}

func (s RequestStatus) Terminal() bool {
	return len(requestNext[s]) == 0
}

// RequestSourcesOf lists the states a request may legally move to `to` from.
// Used to build the guarded UPDATE so check and write are one statement.
func RequestSourcesOf(to RequestStatus) []RequestStatus {
	var from []RequestStatus
	for _, s := range []RequestStatus{RequestProcessing, RequestAccepted, RequestRejected, RequestCompleted} {
		if requestNext[s][to] {
			from = append(from, s)
		}
	}
	return from
}

type OrderStatus string

const (
	OrderProcessing OrderStatus = "processing"
	OrderAccepted   OrderStatus = "accepted"
	OrderRejected   OrderStatus = "rejected"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderProcessing: {OrderAccepted: true, OrderRejected: true, OrderCompleted: true, OrderCancelled: true},
	OrderAccepted:   {OrderCompleted: true},
	OrderRejected:   {},
	OrderCompleted:  {},
	OrderCancelled:  {},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case OrderProcessing, OrderAccepted, OrderRejected, OrderCompleted, OrderCancelled:
		return st, nil
	default:
		return "", &ValidationError{Message: "status must be one of processing, accepted, rejected, completed, cancelled"}
	}
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return orderNext[s][to]
}

func (s OrderStatus) Terminal() bool {
	return len(orderNext[s]) == 0
}

// ReleasesStock reports whether reaching this status permanently releases the
// order's claim on inventory stocks. Completion keeps the deduction: the goods
// were handed over.
func (s OrderStatus) ReleasesStock() bool {
	return s == OrderRejected || s == OrderCancelled
}

func OrderSourcesOf(to OrderStatus) []OrderStatus {
	var from []OrderStatus
	for _, s := range []OrderStatus{OrderProcessing, OrderAccepted, OrderRejected, OrderCompleted, OrderCancelled} {
		if orderNext[s][to] {
			from = append(from, s)
		}
	}
	return from
}
