package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/config"
	"gorm.io/gorm"
)

// Payment is one gateway attempt for an order. Retried checkouts create new
// orders and therefore new payments; an order may accumulate several rows but
// at most one reaches COMPLETED.
type Payment struct {
	ID      string `gorm:"size:36;primary_key" json:"id"`
	StoreId string `gorm:"size:36;index;not null" json:"store_id"`
	OrderId string `gorm:"size:36;index;not null" json:"order_id"`

	Gateway        string `gorm:"size:30;not null" json:"gateway"`
	SessionId      string `gorm:"size:255" json:"session_id"`
	GatewayOrderId string `gorm:"size:100;index" json:"gateway_order_id"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status PaymentStatus   `gorm:"size:20;index;not null" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetLatestPaymentForOrder returns the newest payment row for the order,
// preferring a completed one so reconciliation converges on the row that won.
func GetLatestPaymentForOrder(tx *gorm.DB, orderId string) (*Payment, error) {
	var payment Payment
	err := tx.Where("order_id = ? AND status = ?", orderId, PaymentStatusCompleted).
		First(&payment).Error
	if err == nil {
		return &payment, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	err = tx.Where("order_id = ?", orderId).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func GetPaymentsForOrder(ctx context.Context, storeId string, orderId string) ([]Payment, error) {
	var payments []Payment
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("store_id = ? AND order_id = ?", storeId, orderId).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
