package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"huduma-svc/apperr"
	"huduma-svc/models"
	"huduma-svc/notify"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap/zaptest"
)

type stubPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (s *stubPublisher) PublishEvent(ctx context.Context, topic string, event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if oe, ok := event.(models.OrderEvent); ok {
		s.events = append(s.events, oe)
	}
	return nil
}

func (s *stubPublisher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func setupRegistryTest(t *testing.T) (*Registry, sqlmock.Sqlmock, *notify.Hub, *stubPublisher) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	hub := notify.NewHub(logger)
	events := &stubPublisher{}
	return NewRegistry(db, hub, events, logger), mock, hub, events
}

func orderColumns() []string {
	return []string{"id", "user_id", "service_id", "quantity", "location", "total_price", "status", "checkout_request_id", "created_at"}
}

func orderRow(id, userID int, status models.OrderStatus, token string) *sqlmock.Rows {
	return sqlmock.NewRows(orderColumns()).
		AddRow(id, userID, 5, 2, "Westlands", 1000.0, string(status), token, time.Now())
}

func expectGetOrder(mock sqlmock.Sqlmock, id, userID int, status models.OrderStatus) {
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WithArgs(id).
		WillReturnRows(orderRow(id, userID, status, "ws_CO_123"))
}

func TestUpdateStatus_RequiresAdmin(t *testing.T) {
	registry, mock, _, _ := setupRegistryTest(t)

	_, err := registry.UpdateStatus(context.Background(), 100, models.OrderStatusPaid, models.RoleUser)
	if apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Errorf("Expected forbidden for non-admin actor, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUpdateStatus_OrderNotFound(t *testing.T) {
	registry, mock, _, _ := setupRegistryTest(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	_, err := registry.UpdateStatus(context.Background(), 404, models.OrderStatusPaid, models.RoleAdmin)
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Errorf("Expected not_found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	registry, mock, _, events := setupRegistryTest(t)

	expectGetOrder(mock, 100, 1, models.OrderStatusPaid)

	_, err := registry.UpdateStatus(context.Background(), 100, models.OrderStatusProcessing, models.RoleAdmin)
	if apperr.CodeOf(err) != apperr.CodeInvalidState {
		t.Errorf("Expected invalid_state for paid->processing, got %v", err)
	}
	if events.count() != 0 {
		t.Error("Expected no events for a rejected transition")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUpdateStatus_TerminalOrder(t *testing.T) {
	registry, mock, _, _ := setupRegistryTest(t)

	expectGetOrder(mock, 100, 1, models.OrderStatusCancelled)

	_, err := registry.UpdateStatus(context.Background(), 100, models.OrderStatusProcessing, models.RoleAdmin)
	if apperr.CodeOf(err) != apperr.CodeInvalidState {
		t.Errorf("Expected invalid_state for terminal order, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUpdateStatus_Success(t *testing.T) {
	registry, mock, hub, events := setupRegistryTest(t)

	sub := hub.Subscribe(1, false)
	defer hub.Unsubscribe(sub)

	expectGetOrder(mock, 100, 1, models.OrderStatusProcessing)
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(models.OrderStatusPaid), 100, string(models.OrderStatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	order, err := registry.UpdateStatus(context.Background(), 100, models.OrderStatusPaid, models.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected paid status, got %s", order.Status)
	}

	select {
	case evt := <-sub.Events():
		if evt.Kind != models.EventOrderUpdated {
			t.Errorf("Expected order_updated event, got %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Error("Expected an event on the hub")
	}
	if events.count() != 1 {
		t.Errorf("Expected 1 Kafka event, got %d", events.count())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestUpdateStatus_ConcurrentChange(t *testing.T) {
	registry, mock, _, events := setupRegistryTest(t)

	expectGetOrder(mock, 100, 1, models.OrderStatusProcessing)
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(models.OrderStatusPaid), 100, string(models.OrderStatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := registry.UpdateStatus(context.Background(), 100, models.OrderStatusPaid, models.RoleAdmin)
	if apperr.CodeOf(err) != apperr.CodeInvalidState {
		t.Errorf("Expected invalid_state when losing the race, got %v", err)
	}
	if events.count() != 0 {
		t.Error("Expected no events for a lost race")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestConfirmPayment_SettlesBatch(t *testing.T) {
	registry, mock, _, events := setupRegistryTest(t)

	rows := sqlmock.NewRows(orderColumns()).
		AddRow(100, 1, 5, 2, "Westlands", 1000.0, string(models.OrderStatusProcessing), "ws_CO_123", time.Now()).
		AddRow(101, 1, 6, 1, "Westlands", 800.0, string(models.OrderStatusProcessing), "ws_CO_123", time.Now())
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE checkout_request_id").
		WithArgs("ws_CO_123").
		WillReturnRows(rows)

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(models.OrderStatusPaid), 100, string(models.OrderStatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(models.OrderStatusPaid), 101, string(models.OrderStatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settled, err := registry.ConfirmPayment(context.Background(), "ws_CO_123", true)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if len(settled) != 2 {
		t.Fatalf("Expected 2 settled orders, got %d", len(settled))
	}
	for _, order := range settled {
		if order.Status != models.OrderStatusPaid {
			t.Errorf("Expected order %d to be paid, got %s", order.ID, order.Status)
		}
	}
	if events.count() != 2 {
		t.Errorf("Expected 2 Kafka events, got %d", events.count())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestConfirmPayment_FailureMarksFailed(t *testing.T) {
	registry, mock, _, _ := setupRegistryTest(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE checkout_request_id").
		WithArgs("ws_CO_123").
		WillReturnRows(orderRow(100, 1, models.OrderStatusProcessing, "ws_CO_123"))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(models.OrderStatusFailed), 100, string(models.OrderStatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settled, err := registry.ConfirmPayment(context.Background(), "ws_CO_123", false)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if len(settled) != 1 || settled[0].Status != models.OrderStatusFailed {
		t.Errorf("Expected one failed order, got %+v", settled)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestConfirmPayment_SkipsSettledOrders(t *testing.T) {
	registry, mock, _, events := setupRegistryTest(t)

	// One order already paid, one still processing: the replay must only
	// touch the processing one.
	rows := sqlmock.NewRows(orderColumns()).
		AddRow(100, 1, 5, 2, "Westlands", 1000.0, string(models.OrderStatusPaid), "ws_CO_123", time.Now()).
		AddRow(101, 1, 6, 1, "Westlands", 800.0, string(models.OrderStatusProcessing), "ws_CO_123", time.Now())
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE checkout_request_id").
		WithArgs("ws_CO_123").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(models.OrderStatusPaid), 101, string(models.OrderStatusProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	settled, err := registry.ConfirmPayment(context.Background(), "ws_CO_123", true)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if len(settled) != 1 || settled[0].ID != 101 {
		t.Errorf("Expected only order 101 settled, got %+v", settled)
	}
	if events.count() != 1 {
		t.Errorf("Expected 1 Kafka event, got %d", events.count())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestConfirmPayment_UnknownToken(t *testing.T) {
	registry, mock, _, _ := setupRegistryTest(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE checkout_request_id").
		WithArgs("ws_CO_nope").
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	_, err := registry.ConfirmPayment(context.Background(), "ws_CO_nope", true)
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Errorf("Expected not_found for unknown token, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestListByUser_Pagination(t *testing.T) {
	registry, mock, _, _ := setupRegistryTest(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	rows := sqlmock.NewRows([]string{"id", "user_id", "service_id", "quantity", "location", "total_price", "status", "checkout_request_id", "created_at", "name", "price", "currency"}).
		AddRow(101, 1, 5, 2, "Westlands", 1000.0, string(models.OrderStatusPaid), "ws_CO_123", time.Now(), "House Cleaning", 500.0, "KES")
	mock.ExpectQuery("SELECT o.id, o.user_id, (.+) FROM orders o JOIN services s").
		WithArgs(1, 5, 5).
		WillReturnRows(rows)

	orders, total, err := registry.ListByUser(context.Background(), 1, 2, 5)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if total != 12 {
		t.Errorf("Expected total 12, got %d", total)
	}
	if len(orders) != 1 || orders[0].ServiceName != "House Cleaning" {
		t.Errorf("Unexpected page contents: %+v", orders)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestList_InvalidPagination(t *testing.T) {
	registry, mock, _, _ := setupRegistryTest(t)

	_, _, err := registry.ListAll(context.Background(), 0, 10)
	if apperr.CodeOf(err) != apperr.CodeInvalidArgument {
		t.Errorf("Expected invalid_argument, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
