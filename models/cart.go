package models

import "time"

type CartLine struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	ServiceID int       `json:"service_id"`
	Quantity  int       `json:"quantity"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLineWithService is a cart line joined with catalog details for API
// responses and cart_updated events.
type CartLineWithService struct {
	CartLine
	ServiceName string  `json:"service_name"`
	UnitPrice   float64 `json:"price"`
	Currency    string  `json:"currency"`
	TotalPrice  float64 `json:"total_price"`
}

type AddToCartRequest struct {
	ServiceID int    `json:"service_id" binding:"required"`
	Quantity  int    `json:"quantity"`
	Location  string `json:"location"`
}
