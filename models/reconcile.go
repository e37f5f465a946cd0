package models

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/config"
	"github.com/sruthreads/storefront_backend/gateway"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gateway order statuses as Cashfree reports them.
const (
	GatewayStatusPaid      = "PAID"
	GatewayStatusActive    = "ACTIVE"
	GatewayStatusFailed    = "FAILED"
	GatewayStatusCancelled = "CANCELLED"
)

// MapGatewayStatus translates a gateway order status into the internal
// payment status and, when the order should move, the target order status.
// Unrecognized statuses park the payment in PENDING and leave the order
// alone.
func MapGatewayStatus(gatewayStatus string) (PaymentStatus, OrderStatus, bool) {
	switch gatewayStatus {
	case GatewayStatusPaid:
		return PaymentStatusCompleted, OrderStatusPlaced, true
	case GatewayStatusActive:
		return PaymentStatusPending, "", false
	case GatewayStatusFailed:
		return PaymentStatusFailed, OrderStatusFailed, true
	case GatewayStatusCancelled:
		return PaymentStatusCancelled, OrderStatusCancelled, true
	}
	return PaymentStatusPending, "", false
}

// ReconcileOutcome is what both reconciliation entry points return: the
// stored state after the call, whether freshly applied or already final.
type ReconcileOutcome struct {
	OrderNumber   string          `json:"order_number"`
	GatewayStatus string          `json:"gateway_status,omitempty"`
	PaymentStatus PaymentStatus   `json:"final_payment_status"`
	OrderStatus   OrderStatus     `json:"order_status"`
	PaidOnline    decimal.Decimal `json:"paid_online"`
}

// ApplyGatewayStatus is the single state-transition path shared by the
// webhook and the status poll. It runs one transaction over (Payment, Order,
// CouponUsage, cart), so a crash can never leave the payment COMPLETED with
// the order still INITIATED. A terminal payment is never overwritten; the
// call becomes a no-op that echoes the stored state.
func ApplyGatewayStatus(ctx context.Context, orderNumber string, gatewayStatus string,
	amount decimal.Decimal) (*ReconcileOutcome, error) {

	db := config.GetDB()
	var outcome ReconcileOutcome
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_number = ?", orderNumber).
			First(&order).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOrderNotFound
			}
			return err
		}

		payment, err := GetLatestPaymentForOrder(tx, order.ID)
		if err != nil {
			return err
		}

		outcome = ReconcileOutcome{
			OrderNumber:   orderNumber,
			GatewayStatus: gatewayStatus,
			PaymentStatus: payment.Status,
			OrderStatus:   order.Status,
			PaidOnline:    order.PaidOnline,
		}
		if payment.Status.IsTerminal() {
			return nil
		}

		paymentStatus, orderStatus, moveOrder := MapGatewayStatus(gatewayStatus)
		if err := tx.Model(&Payment{}).Where("id = ?", payment.ID).
			Update("status", paymentStatus).Error; err != nil {
			return err
		}
		outcome.PaymentStatus = paymentStatus

		if !moveOrder || !CanTransition(order.Status, orderStatus) {
			return nil
		}

		updates := map[string]interface{}{"status": orderStatus}
		if paymentStatus == PaymentStatusCompleted {
			updates["paid_online"] = amount
		}
		if err := tx.Model(&Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := appendTimeline(tx, order.ID, orderStatus, "payment "+string(paymentStatus), string(ActorSystem)); err != nil {
			return err
		}
		outcome.OrderStatus = orderStatus

		if paymentStatus != PaymentStatusCompleted {
			return nil
		}
		outcome.PaidOnline = amount

		if order.CouponId != "" {
			usage := CouponUsage{
				ID:       uuid.NewString(),
				StoreId:  order.StoreId,
				CouponId: order.CouponId,
				UserId:   order.UserId,
				OrderId:  order.ID,
			}
			if err := tx.Create(&usage).Error; err != nil {
				return err
			}
		}
		return ClearCart(tx, order.StoreId, order.UserId)
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// WebhookPayload is the gateway-defined inbound event shape.
type WebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderId     string          `json:"order_id"`
			OrderAmount decimal.Decimal `json:"order_amount"`
		} `json:"order"`
	} `json:"data"`
}

// webhookTypeStatus maps webhook event types to the gateway status they
// imply.
var webhookTypeStatus = map[string]string{
	"PAYMENT_SUCCESS_WEBHOOK":      GatewayStatusPaid,
	"PAYMENT_FAILED_WEBHOOK":       GatewayStatusFailed,
	"PAYMENT_USER_DROPPED_WEBHOOK": GatewayStatusCancelled,
}

// ReconcileWebhook processes an asynchronous gateway event. Errors are
// logged, never returned: the HTTP handler must acknowledge with 200
// regardless, or the gateway retries forever on payloads that will never
// succeed.
func ReconcileWebhook(ctx context.Context, payload WebhookPayload) {
	logger := config.GetLogger()

	gatewayStatus, ok := webhookTypeStatus[payload.Type]
	if !ok {
		logger.WithField("type", payload.Type).Info("ignoring unhandled webhook type")
		return
	}
	if payload.Data.Order.OrderId == "" {
		logger.Warn("webhook payload missing order id")
		return
	}

	_, err := ApplyGatewayStatus(ctx, payload.Data.Order.OrderId, gatewayStatus, payload.Data.Order.OrderAmount)
	if err != nil {
		config.LogError(logger, "reconcile.go", "ReconcileWebhook", "ApplyGatewayStatus", payload.Data.Order.OrderId, err)
	}
}

// CheckPaymentStatus is the client-invoked poll. If the stored payment is
// already COMPLETED it returns immediately without touching the gateway;
// otherwise it fetches the live status and applies it through the same
// transition path the webhook uses.
func CheckPaymentStatus(ctx context.Context, store *Store, orderNumber string,
	gw gateway.Client) (*ReconcileOutcome, error) {

	order, err := GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.StoreId != store.ID {
		return nil, ErrOrderNotFound
	}

	db := config.GetDB()
	payment, err := GetLatestPaymentForOrder(db.WithContext(ctx), order.ID)
	if err != nil {
		return nil, err
	}
	if payment.Status == PaymentStatusCompleted {
		return &ReconcileOutcome{
			OrderNumber:   orderNumber,
			PaymentStatus: payment.Status,
			OrderStatus:   order.Status,
			PaidOnline:    order.PaidOnline,
		}, nil
	}

	gatewayStatus, err := gw.FetchStatus(ctx, gatewayCredentials(store), orderNumber)
	if err != nil {
		return nil, err
	}
	return ApplyGatewayStatus(ctx, orderNumber, gatewayStatus, order.Amount)
}
