package models

type EventKind string

const (
	EventCartUpdated  EventKind = "cart_updated"
	EventOrderCreated EventKind = "order_created"
	EventOrderUpdated EventKind = "order_updated"
)

// Event is the envelope pushed to live-connected clients: the kind tag plus
// a snapshot of the entity that changed. UserID scopes delivery to the owning
// user's subscriptions (admins receive everything).
type Event struct {
	Kind    EventKind `json:"kind"`
	UserID  int       `json:"user_id"`
	Payload any       `json:"payload"`
}

// PaymentResultEvent is the message consumed from the payment_events topic.
// It stands in for the payment provider's confirmation callback and carries
// the correlation token identifying a checkout batch.
type PaymentResultEvent struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	ResultCode        int    `json:"result_code"` // 0 = paid, anything else = failed
	ResultDesc        string `json:"result_desc"`
}
