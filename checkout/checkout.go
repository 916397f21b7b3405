// Package checkout converts a priced cart into committed orders. The
// ordering is deliberate: the payment push must be accepted by the provider
// before any order row is written, because an order committed ahead of a
// failed initiation would have no correlation token and could never be
// reconciled. The inverse failure (rows lost after a successful push) is
// handled by rolling back and flagging the error as payment-in-flight.
package checkout

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	"huduma-svc/apperr"
	"huduma-svc/cart"
	"huduma-svc/kafka"
	"huduma-svc/middleware"
	"huduma-svc/models"
	"huduma-svc/mpesa"
	"huduma-svc/notify"
	"huduma-svc/pricing"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// persistTimeout bounds the order-insert transaction. It is kept far below
// the provider call's timeout: once the push is out, a hung database should
// fail fast and roll back rather than sit on an unconfirmed payment.
const persistTimeout = 5 * time.Second

// phonePattern is the provider's subscriber-number format (2547XXXXXXXX).
var phonePattern = regexp.MustCompile(`^254\d{9}$`)

// PaymentHandle is returned to the caller after a successful checkout. It
// carries the correlation token plus the raw provider response, whose
// display fields (CustomerMessage etc.) are opaque to this package.
type PaymentHandle struct {
	CheckoutRequestID string                 `json:"checkout_request_id"`
	Provider          *mpesa.STKPushResponse `json:"provider"`
	Orders            []models.Order         `json:"orders"`
}

type Orchestrator struct {
	db        *sql.DB
	cart      *cart.Manager
	pricing   *pricing.Engine
	initiator mpesa.Initiator
	hub       *notify.Hub
	events    kafka.EventPublisher
	logger    *zap.Logger

	userLocks sync.Map // user id -> *sync.Mutex
}

func NewOrchestrator(
	db *sql.DB,
	cartMgr *cart.Manager,
	pricingEngine *pricing.Engine,
	initiator mpesa.Initiator,
	hub *notify.Hub,
	events kafka.EventPublisher,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		db:        db,
		cart:      cartMgr,
		pricing:   pricingEngine,
		initiator: initiator,
		hub:       hub,
		events:    events,
		logger:    logger,
	}
}

// Checkout prices the user's cart, initiates a push payment for the grand
// total and, in one transaction, creates a processing order per cart line
// and clears the cart. Concurrent checkouts by the same user are rejected
// with Conflict rather than serialized: two calls racing on one cart
// snapshot would double-charge.
func (o *Orchestrator) Checkout(ctx context.Context, userID int, phone string) (*PaymentHandle, error) {
	ctx, span := otel.Tracer("huduma-svc").Start(ctx, "Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", userID))

	if !phonePattern.MatchString(phone) {
		return nil, apperr.InvalidArgument("phone number must match 254XXXXXXXXX")
	}

	lockAny, _ := o.userLocks.LoadOrStore(userID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	if !lock.TryLock() {
		middleware.RecordCheckout("conflict")
		return nil, apperr.Conflict("a checkout for this cart is already in progress")
	}
	defer lock.Unlock()

	lines, err := o.cart.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperr.InvalidArgument("cart is empty")
	}

	quote, err := o.pricing.Price(ctx, lines)
	if err != nil {
		middleware.RecordCheckout("pricing_failed")
		return nil, err
	}
	span.SetAttributes(attribute.Float64("total", quote.Total), attribute.Int("lines", len(lines)))

	reference := fmt.Sprintf("Cart Payment for User %d", userID)
	pushResp, err := o.initiator.STKPush(ctx, quote.Total, phone, reference)
	if err != nil {
		span.RecordError(err)
		middleware.RecordCheckout("initiation_failed")
		middleware.RecordPaymentInitiated("failed")
		o.logger.Error("Payment initiation failed", zap.Int("user_id", userID), zap.Error(err))
		return nil, apperr.ExternalFailure(err, false, "payment initiation failed")
	}
	middleware.RecordPaymentInitiated("accepted")

	orders, err := o.persistBatch(ctx, userID, lines, quote, pushResp.CheckoutRequestID)
	if err != nil {
		span.RecordError(err)
		middleware.RecordCheckout("persist_failed")
		o.logger.Error("Failed to persist checkout batch; payment may be in flight",
			zap.Int("user_id", userID),
			zap.String("checkout_request_id", pushResp.CheckoutRequestID),
			zap.Error(err),
		)
		return nil, apperr.ExternalFailure(err, true, "failed to record orders after payment initiation, do not retry blindly")
	}

	for _, order := range orders {
		o.publishOrderCreated(ctx, order)
	}

	middleware.RecordCheckout("success")
	o.logger.Info("Checkout completed",
		zap.Int("user_id", userID),
		zap.Int("orders", len(orders)),
		zap.Float64("total", quote.Total),
		zap.String("checkout_request_id", pushResp.CheckoutRequestID),
	)

	return &PaymentHandle{
		CheckoutRequestID: pushResp.CheckoutRequestID,
		Provider:          pushResp,
		Orders:            orders,
	}, nil
}

// persistBatch writes one processing order per priced line and soft-deletes
// exactly the snapshotted cart lines, all inside one transaction. Either
// everything commits or nothing does.
func (o *Orchestrator) persistBatch(
	ctx context.Context,
	userID int,
	lines []models.CartLineWithService,
	quote *pricing.Quote,
	checkoutRequestID string,
) ([]models.Order, error) {
	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	tx, err := o.db.BeginTx(pctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	orders := make([]models.Order, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		var order models.Order
		err := tx.QueryRowContext(pctx,
			"INSERT INTO orders (user_id, service_id, quantity, location, total_price, status, checkout_request_id) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, user_id, service_id, quantity, location, total_price, status, checkout_request_id, created_at",
			userID, line.ServiceID, line.Quantity, line.Location, line.Subtotal, models.OrderStatusProcessing, checkoutRequestID,
		).Scan(&order.ID, &order.UserID, &order.ServiceID, &order.Quantity, &order.Location,
			&order.TotalPrice, &order.Status, &order.CheckoutRequestID, &order.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order: %w", err)
		}
		orders = append(orders, order)
	}

	lineIDs := make([]int64, len(lines))
	for i, line := range lines {
		lineIDs[i] = int64(line.ID)
	}
	if _, err := tx.ExecContext(pctx,
		"UPDATE cart_items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ANY($1) AND deleted_at IS NULL",
		pq.Array(lineIDs),
	); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout batch: %w", err)
	}
	return orders, nil
}

func (o *Orchestrator) publishOrderCreated(ctx context.Context, order models.Order) {
	o.hub.Publish(models.Event{Kind: models.EventOrderCreated, UserID: order.UserID, Payload: order})

	event := models.OrderEvent{
		OrderID:           order.ID,
		UserID:            order.UserID,
		ServiceID:         order.ServiceID,
		Quantity:          order.Quantity,
		Status:            order.Status,
		TotalPrice:        order.TotalPrice,
		CheckoutRequestID: order.CheckoutRequestID,
		EventType:         "order_created",
	}
	if err := o.events.PublishEvent(ctx, kafka.TopicOrderEvents, event); err != nil {
		o.logger.Error("Failed to publish order_created event", zap.Error(err))
		// Don't fail the request, but log the error
	}
}
