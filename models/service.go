package models

type Service struct {
	ID          int     `json:"id"`
	Category    string  `json:"category"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	IsActive    bool    `json:"is_active"`
}
