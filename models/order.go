package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

// transitions is the allowed status graph. completed, cancelled and failed
// are terminal and have no outgoing edges.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusCompleted, OrderStatusCancelled},
}

// ParseOrderStatus validates a raw status string against the closed enum.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusPaid,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return OrderStatus(s), true
	}
	return "", false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

type Order struct {
	ID                int         `json:"id"`
	UserID            int         `json:"user_id"`
	ServiceID         int         `json:"service_id"`
	Quantity          int         `json:"quantity"`
	Location          string      `json:"location"`
	TotalPrice        float64     `json:"total_price"`
	Status            OrderStatus `json:"status"`
	CheckoutRequestID string      `json:"checkout_request_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// OrderWithService is an order joined with catalog details for API responses.
type OrderWithService struct {
	Order
	ServiceName string  `json:"service_name"`
	UnitPrice   float64 `json:"price"`
	Currency    string  `json:"currency"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type OrderEvent struct {
	OrderID           int         `json:"order_id"`
	UserID            int         `json:"user_id"`
	ServiceID         int         `json:"service_id"`
	Quantity          int         `json:"quantity"`
	Status            OrderStatus `json:"status"`
	TotalPrice        float64     `json:"total_price"`
	CheckoutRequestID string      `json:"checkout_request_id,omitempty"`
	EventType         string      `json:"event_type"` // order_created, order_updated
}
