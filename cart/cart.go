// Package cart holds per-user pending selections between "add to cart" and
// checkout. Lines are soft-deleted, either explicitly by the user or by a
// successful checkout converting them into orders.
package cart

import (
	"context"
	"database/sql"

	"huduma-svc/apperr"
	"huduma-svc/catalog"
	"huduma-svc/kafka"
	"huduma-svc/models"
	"huduma-svc/notify"

	"go.uber.org/zap"
)

type Manager struct {
	db      *sql.DB
	catalog *catalog.Store
	hub     *notify.Hub
	events  kafka.EventPublisher
	logger  *zap.Logger
}

func NewManager(db *sql.DB, cat *catalog.Store, hub *notify.Hub, events kafka.EventPublisher, logger *zap.Logger) *Manager {
	return &Manager{db: db, catalog: cat, hub: hub, events: events, logger: logger}
}

// Add validates the service against the catalog and appends a line to the
// user's cart.
func (m *Manager) Add(ctx context.Context, userID, serviceID, quantity int, location string) (*models.CartLineWithService, error) {
	if quantity <= 0 {
		return nil, apperr.InvalidArgument("quantity must be a positive integer")
	}

	svc, err := m.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	line := models.CartLineWithService{
		ServiceName: svc.Name,
		UnitPrice:   svc.Price,
		Currency:    svc.Currency,
	}
	err = m.db.QueryRowContext(ctx,
		"INSERT INTO cart_items (user_id, service_id, quantity, location) VALUES ($1, $2, $3, $4) RETURNING id, user_id, service_id, quantity, location, created_at",
		userID, serviceID, quantity, location,
	).Scan(&line.ID, &line.UserID, &line.ServiceID, &line.Quantity, &line.Location, &line.CreatedAt)
	if err != nil {
		return nil, err
	}
	line.TotalPrice = svc.Price * float64(quantity)

	m.publishCartUpdated(ctx, userID, &line)
	m.logger.Info("Item added to cart", zap.Int("user_id", userID), zap.Int("service_id", serviceID))
	return &line, nil
}

// List returns the user's active cart lines joined with catalog details.
func (m *Manager) List(ctx context.Context, userID int) ([]models.CartLineWithService, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT c.id, c.user_id, c.service_id, c.quantity, c.location, c.created_at, s.name, s.price, s.currency FROM cart_items c JOIN services s ON s.id = c.service_id WHERE c.user_id = $1 AND c.deleted_at IS NULL ORDER BY c.created_at ASC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.CartLineWithService{}
	for rows.Next() {
		var line models.CartLineWithService
		if err := rows.Scan(&line.ID, &line.UserID, &line.ServiceID, &line.Quantity, &line.Location, &line.CreatedAt,
			&line.ServiceName, &line.UnitPrice, &line.Currency); err != nil {
			return nil, err
		}
		line.TotalPrice = line.UnitPrice * float64(line.Quantity)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Remove soft-deletes a line from the user's cart. Lines owned by other
// users are indistinguishable from missing ones.
func (m *Manager) Remove(ctx context.Context, userID, lineID int) error {
	res, err := m.db.ExecContext(ctx,
		"UPDATE cart_items SET deleted_at = CURRENT_TIMESTAMP WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		lineID, userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("cart item %d not found", lineID)
	}

	m.publishCartUpdated(ctx, userID, map[string]int{"cart_item_id": lineID})
	m.logger.Info("Item removed from cart", zap.Int("user_id", userID), zap.Int("cart_item_id", lineID))
	return nil
}

func (m *Manager) publishCartUpdated(ctx context.Context, userID int, payload any) {
	m.hub.Publish(models.Event{Kind: models.EventCartUpdated, UserID: userID, Payload: payload})
	if err := m.events.PublishEvent(ctx, kafka.TopicOrderEvents, models.Event{
		Kind:    models.EventCartUpdated,
		UserID:  userID,
		Payload: payload,
	}); err != nil {
		m.logger.Error("Failed to publish cart_updated event", zap.Error(err))
		// Don't fail the request, but log the error
	}
}
