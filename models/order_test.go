package models

import "testing"

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	allowed := []struct {
		from, to OrderStatus
	}{
		{OrderStatusPending, OrderStatusProcessing},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusPaid},
		{OrderStatusProcessing, OrderStatusFailed},
		{OrderStatusProcessing, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusCompleted},
		{OrderStatusPaid, OrderStatusCancelled},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("Expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from, to OrderStatus
	}{
		{OrderStatusPaid, OrderStatusProcessing},
		{OrderStatusProcessing, OrderStatusCompleted},
		{OrderStatusPending, OrderStatusPaid},
		{OrderStatusCompleted, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusProcessing},
		{OrderStatusFailed, OrderStatusPaid},
		{OrderStatusFailed, OrderStatusProcessing},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("Expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	live := []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusPaid}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if status, ok := ParseOrderStatus("paid"); !ok || status != OrderStatusPaid {
		t.Errorf("Expected paid to parse, got %q ok=%v", status, ok)
	}
	if _, ok := ParseOrderStatus("shipped"); ok {
		t.Error("Expected unknown status to be rejected")
	}
	if _, ok := ParseOrderStatus(""); ok {
		t.Error("Expected empty status to be rejected")
	}
}
