package models_test

import (
	"testing"

	"github.com/sruthreads/storefront_backend/models"
)

func TestMapGatewayStatus(t *testing.T) {
	cases := []struct {
		gateway   string
		payment   models.PaymentStatus
		order     models.OrderStatus
		moveOrder bool
	}{
		{"PAID", models.PaymentStatusCompleted, models.OrderStatusPlaced, true},
		{"ACTIVE", models.PaymentStatusPending, "", false},
		{"FAILED", models.PaymentStatusFailed, models.OrderStatusFailed, true},
		{"CANCELLED", models.PaymentStatusCancelled, models.OrderStatusCancelled, true},
		{"EXPIRED", models.PaymentStatusPending, "", false},
		{"", models.PaymentStatusPending, "", false},
	}
	for _, tc := range cases {
		payment, order, moveOrder := models.MapGatewayStatus(tc.gateway)
		if payment != tc.payment || order != tc.order || moveOrder != tc.moveOrder {
			t.Fatalf("MapGatewayStatus(%q) = (%s, %s, %v); want (%s, %s, %v)",
				tc.gateway, payment, order, moveOrder, tc.payment, tc.order, tc.moveOrder)
		}
	}
}
