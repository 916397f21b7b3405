// Package orders owns the order status state machine. Transitions come from
// two lanes that share one code path: admin edits over HTTP and payment
// results consumed from Kafka. The machine itself does not care who pulls
// the trigger, so a real provider webhook can be wired in later.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"huduma-svc/apperr"
	"huduma-svc/kafka"
	"huduma-svc/middleware"
	"huduma-svc/models"
	"huduma-svc/notify"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const selectOrderColumns = "id, user_id, service_id, quantity, location, total_price, status, COALESCE(checkout_request_id, ''), created_at"

type Registry struct {
	db     *sql.DB
	hub    *notify.Hub
	events kafka.EventPublisher
	logger *zap.Logger
}

func NewRegistry(db *sql.DB, hub *notify.Hub, events kafka.EventPublisher, logger *zap.Logger) *Registry {
	return &Registry{db: db, hub: hub, events: events, logger: logger}
}

func (r *Registry) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	var order models.Order
	err := r.db.QueryRowContext(ctx,
		"SELECT "+selectOrderColumns+" FROM orders WHERE id = $1 AND deleted_at IS NULL",
		orderID,
	).Scan(&order.ID, &order.UserID, &order.ServiceID, &order.Quantity, &order.Location,
		&order.TotalPrice, &order.Status, &order.CheckoutRequestID, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus applies an admin-driven transition. All status edits over the
// HTTP surface are admin-gated, payment confirmation included.
func (r *Registry) UpdateStatus(ctx context.Context, orderID int, newStatus models.OrderStatus, actorRole string) (*models.Order, error) {
	ctx, span := otel.Tracer("huduma-svc").Start(ctx, "UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", orderID), attribute.String("order.status", string(newStatus)))

	if actorRole != models.RoleAdmin {
		return nil, apperr.Forbidden("admin access required")
	}

	order, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := r.transition(ctx, order, newStatus); err != nil {
		return nil, err
	}

	r.logger.Info("Order status updated",
		zap.Int("order_id", orderID),
		zap.String("status", string(newStatus)),
	)
	return order, nil
}

// ConfirmPayment resolves the checkout batch sharing the correlation token
// and settles every order still in processing: paid on success, failed
// otherwise. Orders already past processing are left alone, which makes a
// replayed confirmation harmless.
func (r *Registry) ConfirmPayment(ctx context.Context, checkoutRequestID string, success bool) ([]models.Order, error) {
	ctx, span := otel.Tracer("huduma-svc").Start(ctx, "ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("checkout_request_id", checkoutRequestID), attribute.Bool("success", success))

	batch, err := r.FindByCorrelationToken(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, apperr.NotFound("no orders for checkout request %s", checkoutRequestID)
	}

	target := models.OrderStatusPaid
	if !success {
		target = models.OrderStatusFailed
	}

	settled := make([]models.Order, 0, len(batch))
	for i := range batch {
		order := &batch[i]
		if order.Status != models.OrderStatusProcessing {
			r.logger.Info("Skipping already settled order",
				zap.Int("order_id", order.ID),
				zap.String("status", string(order.Status)),
			)
			continue
		}
		if err := r.transition(ctx, order, target); err != nil {
			return nil, err
		}
		settled = append(settled, *order)
	}

	r.logger.Info("Payment confirmation applied",
		zap.String("checkout_request_id", checkoutRequestID),
		zap.Bool("success", success),
		zap.Int("orders", len(settled)),
	)
	return settled, nil
}

// transition validates the edge, persists it and fans the change out. The
// caller has already loaded the order; order.Status is updated in place.
func (r *Registry) transition(ctx context.Context, order *models.Order, newStatus models.OrderStatus) error {
	if !order.Status.CanTransitionTo(newStatus) {
		if order.Status.IsTerminal() {
			return apperr.InvalidState("order %d is %s, a terminal status", order.ID, order.Status)
		}
		return apperr.InvalidState("cannot transition order %d from %s to %s", order.ID, order.Status, newStatus)
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2 AND status = $3 AND deleted_at IS NULL",
		newStatus, order.ID, order.Status,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Lost a race with another transition on the same order.
		return apperr.InvalidState("order %d changed status concurrently", order.ID)
	}

	order.Status = newStatus
	middleware.RecordStatusTransition(string(newStatus))
	r.publishOrderUpdated(ctx, *order)
	return nil
}

// FindByCorrelationToken returns every order in the checkout batch that the
// given provider token was issued for. One push payment can cover several
// orders.
func (r *Registry) FindByCorrelationToken(ctx context.Context, checkoutRequestID string) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+selectOrderColumns+" FROM orders WHERE checkout_request_id = $1 AND deleted_at IS NULL ORDER BY id ASC",
		checkoutRequestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batch := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.ServiceID, &order.Quantity, &order.Location,
			&order.TotalPrice, &order.Status, &order.CheckoutRequestID, &order.CreatedAt); err != nil {
			return nil, err
		}
		batch = append(batch, order)
	}
	return batch, rows.Err()
}

// ListByUser returns one page of the user's orders, newest first, joined
// with catalog details.
func (r *Registry) ListByUser(ctx context.Context, userID, page, perPage int) ([]models.OrderWithService, int, error) {
	return r.list(ctx, &userID, page, perPage)
}

// ListAll is the admin view across every user.
func (r *Registry) ListAll(ctx context.Context, page, perPage int) ([]models.OrderWithService, int, error) {
	return r.list(ctx, nil, page, perPage)
}

func (r *Registry) list(ctx context.Context, userID *int, page, perPage int) ([]models.OrderWithService, int, error) {
	if page < 1 || perPage < 1 {
		return nil, 0, apperr.InvalidArgument("invalid pagination parameters")
	}

	countQuery := "SELECT COUNT(*) FROM orders WHERE deleted_at IS NULL"
	listQuery := "SELECT o.id, o.user_id, o.service_id, o.quantity, o.location, o.total_price, o.status, COALESCE(o.checkout_request_id, ''), o.created_at, s.name, s.price, s.currency FROM orders o JOIN services s ON s.id = o.service_id WHERE o.deleted_at IS NULL"

	args := []any{}
	if userID != nil {
		countQuery += " AND user_id = $1"
		listQuery += " AND o.user_id = $1"
		args = append(args, *userID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitPos := len(args) + 1
	listQuery += " ORDER BY o.created_at DESC"
	listQuery += " LIMIT $" + strconv.Itoa(limitPos) + " OFFSET $" + strconv.Itoa(limitPos+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []models.OrderWithService{}
	for rows.Next() {
		var order models.OrderWithService
		if err := rows.Scan(&order.ID, &order.UserID, &order.ServiceID, &order.Quantity, &order.Location,
			&order.TotalPrice, &order.Status, &order.CheckoutRequestID, &order.CreatedAt,
			&order.ServiceName, &order.UnitPrice, &order.Currency); err != nil {
			return nil, 0, err
		}
		result = append(result, order)
	}
	return result, total, rows.Err()
}

func (r *Registry) publishOrderUpdated(ctx context.Context, order models.Order) {
	r.hub.Publish(models.Event{Kind: models.EventOrderUpdated, UserID: order.UserID, Payload: order})

	event := models.OrderEvent{
		OrderID:           order.ID,
		UserID:            order.UserID,
		ServiceID:         order.ServiceID,
		Quantity:          order.Quantity,
		Status:            order.Status,
		TotalPrice:        order.TotalPrice,
		CheckoutRequestID: order.CheckoutRequestID,
		EventType:         "order_updated",
	}
	if err := r.events.PublishEvent(ctx, kafka.TopicOrderEvents, event); err != nil {
		r.logger.Error("Failed to publish order_updated event", zap.Error(err))
	}
}
