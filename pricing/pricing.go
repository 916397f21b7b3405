// Package pricing resolves cart lines against the current catalog. Prices
// are read here, at checkout time, never from the cart: a service edit
// between cart-add and checkout is always reflected in the quote.
package pricing

import (
	"context"

	"huduma-svc/catalog"
	"huduma-svc/models"
)

type PricedLine struct {
	ServiceID   int
	ServiceName string
	UnitPrice   float64
	Currency    string
	Quantity    int
	Location    string
	Subtotal    float64
}

type Quote struct {
	Lines []PricedLine
	Total float64
}

type Engine struct {
	catalog *catalog.Store
}

func NewEngine(cat *catalog.Store) *Engine {
	return &Engine{catalog: cat}
}

// Price resolves every line or fails the whole set. A cart referencing a
// service that has since been deactivated yields NotFound naming that
// service; a partial quote would leave the cart in an ambiguous state, so
// there is no per-line recovery.
func (e *Engine) Price(ctx context.Context, lines []models.CartLineWithService) (*Quote, error) {
	quote := &Quote{Lines: make([]PricedLine, 0, len(lines))}
	for _, line := range lines {
		svc, err := e.catalog.GetService(ctx, line.ServiceID)
		if err != nil {
			return nil, err
		}
		priced := PricedLine{
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			UnitPrice:   svc.Price,
			Currency:    svc.Currency,
			Quantity:    line.Quantity,
			Location:    line.Location,
			Subtotal:    svc.Price * float64(line.Quantity),
		}
		quote.Lines = append(quote.Lines, priced)
		quote.Total += priced.Subtotal
	}
	return quote, nil
}
