package models_test

import (
	"testing"

	"github.com/sruthreads/storefront_backend/models"
)

func TestCanTransition_HappyPath(t *testing.T) {
	path := []models.OrderStatus{
		models.OrderStatusInitiated,
		models.OrderStatusPlaced,
		models.OrderStatusConfirmed,
		models.OrderStatusPacked,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		if !models.CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransition_RejectsIllegalEdges(t *testing.T) {
	cases := []struct {
		from, to models.OrderStatus
	}{
		{models.OrderStatusInitiated, models.OrderStatusDelivered},
		{models.OrderStatusPlaced, models.OrderStatusInitiated},
		{models.OrderStatusDelivered, models.OrderStatusShipped},
		{models.OrderStatusFailed, models.OrderStatusPlaced},
		{models.OrderStatusCancelled, models.OrderStatusPlaced},
		{models.OrderStatusRefunded, models.OrderStatusReturned},
		{models.OrderStatusInitiated, models.OrderStatusConfirmed},
	}
	for _, tc := range cases {
		if models.CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestValidateTransition_ActorRestrictions(t *testing.T) {
	// Only the reconciliation engine may place an order.
	if err := models.ValidateTransition(models.OrderStatusInitiated, models.OrderStatusPlaced, models.ActorSystem); err != nil {
		t.Fatalf("system should place orders: %v", err)
	}
	if err := models.ValidateTransition(models.OrderStatusInitiated, models.OrderStatusPlaced, models.ActorAdmin); err == nil {
		t.Fatal("admin must not place orders directly")
	}

	// Fulfillment steps are admin-only.
	if err := models.ValidateTransition(models.OrderStatusPlaced, models.OrderStatusConfirmed, models.ActorAdmin); err != nil {
		t.Fatalf("admin should confirm orders: %v", err)
	}
	if err := models.ValidateTransition(models.OrderStatusPlaced, models.OrderStatusConfirmed, models.ActorSystem); err == nil {
		t.Fatal("system must not confirm orders")
	}

	// UNFULFILLED is reserved for the sweeper.
	if err := models.ValidateTransition(models.OrderStatusInitiated, models.OrderStatusUnfulfilled, models.ActorBatch); err != nil {
		t.Fatalf("batch should mark unfulfilled: %v", err)
	}
	if err := models.ValidateTransition(models.OrderStatusInitiated, models.OrderStatusUnfulfilled, models.ActorAdmin); err == nil {
		t.Fatal("admin must not mark unfulfilled")
	}
}

func TestValidateTransition_IllegalEdge(t *testing.T) {
	err := models.ValidateTransition(models.OrderStatusDelivered, models.OrderStatusPlaced, models.ActorSystem)
	if err != models.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition; got %v", err)
	}
}

func TestIsTerminalOrderStatus(t *testing.T) {
	terminal := []models.OrderStatus{
		models.OrderStatusDelivered,
		models.OrderStatusFailed,
		models.OrderStatusCancelled,
		models.OrderStatusUnfulfilled,
		models.OrderStatusRefunded,
	}
	for _, s := range terminal {
		if !models.IsTerminalOrderStatus(s) {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	open := []models.OrderStatus{
		models.OrderStatusInitiated,
		models.OrderStatusPlaced,
		models.OrderStatusShipped,
		models.OrderStatusReturnRequested,
	}
	for _, s := range open {
		if models.IsTerminalOrderStatus(s) {
			t.Fatalf("expected %s to be open", s)
		}
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	if models.PaymentStatusInitiated.IsTerminal() || models.PaymentStatusPending.IsTerminal() {
		t.Fatal("INITIATED/PENDING must not be terminal")
	}
	for _, s := range []models.PaymentStatus{
		models.PaymentStatusCompleted,
		models.PaymentStatusFailed,
		models.PaymentStatusCancelled,
	} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
}
