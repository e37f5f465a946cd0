package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID          string `gorm:"size:36;primary_key" json:"id"`
	StoreId     string `gorm:"size:36;index;not null" json:"store_id"`
	UserId      string `gorm:"size:36;index;not null" json:"user_id"`
	OrderNumber string `gorm:"size:30;uniqueIndex;not null" json:"order_number"`

	// AddressSnapshot is the delivery address frozen at order time, stored as
	// JSON. Never re-read from the address book.
	AddressSnapshot string `gorm:"type:text" json:"address_snapshot"`

	MrpTotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"mrp_total"`
	SellingSubtotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"selling_subtotal"`
	CouponDiscount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"coupon_discount"`
	CouponId        string          `gorm:"size:36" json:"coupon_id,omitempty"`
	CouponCode      string          `gorm:"size:50" json:"coupon_code,omitempty"`
	ShippingCharge  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"shipping_charge"`
	PlatformFee     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"platform_fee"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`

	WalletPaid     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"wallet_paid"`
	PaidOnline     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"paid_online"`
	CashOnDelivery decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cash_on_delivery"`

	Status    OrderStatus     `gorm:"size:20;index;not null" json:"status"`
	LineItems []OrderLineItem `gorm:"foreignKey:OrderId" json:"line_items,omitempty"`
	Timeline  []OrderTimeline `gorm:"foreignKey:OrderId" json:"timeline,omitempty"`

	CreatedBy string    `gorm:"size:100" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderLineItem snapshots the product at order time. The live product row is
// never re-read when rendering or fulfilling an order.
type OrderLineItem struct {
	ID        string `gorm:"size:36;primary_key" json:"id"`
	OrderId   string `gorm:"size:36;index;not null" json:"order_id"`
	ProductId string `gorm:"size:36;index;not null" json:"product_id"`

	Sku          string          `gorm:"size:100;not null" json:"sku"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Image        string          `gorm:"size:255" json:"image"`
	Mrp          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"mrp"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"selling_price"`
	Quantity     int64           `gorm:"not null" json:"quantity"`

	ApportionedDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"apportioned_discount"`
	ApportionedOnline   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"apportioned_online"`
	ApportionedWallet   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"apportioned_wallet"`
	ApportionedGst      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"apportioned_gst"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// OrderTimeline is the append-only audit trail: one row per status
// transition, never mutated or deleted.
type OrderTimeline struct {
	ID        string      `gorm:"size:36;primary_key" json:"id"`
	OrderId   string      `gorm:"size:36;index;not null" json:"order_id"`
	Status    OrderStatus `gorm:"size:20;not null" json:"status"`
	Remarks   string      `gorm:"size:255" json:"remarks"`
	CreatedBy string      `gorm:"size:100" json:"created_by"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func appendTimeline(tx *gorm.DB, orderId string, status OrderStatus, remarks string, actor string) error {
	return tx.Create(&OrderTimeline{
		ID:        uuid.NewString(),
		OrderId:   orderId,
		Status:    status,
		Remarks:   remarks,
		CreatedBy: actor,
	}).Error
}

// TransitionOrder moves an order to a new status after checking the
// transition table and the invoking actor. The order row is locked so
// concurrent transitions serialize; exactly one timeline row is appended.
func TransitionOrder(ctx context.Context, storeId string, orderId string,
	to OrderStatus, by TransitionActor, remarks string, actor string) (*Order, error) {

	if !to.Valid() {
		return nil, errors.New("unknown order status")
	}

	db := config.GetDB()
	var order Order
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ? AND id = ?", storeId, orderId).
			First(&order).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOrderNotFound
			}
			return err
		}

		if err := ValidateTransition(order.Status, to, by); err != nil {
			return err
		}

		order.Status = to
		if err := tx.Model(&Order{}).Where("id = ?", order.ID).
			Update("status", to).Error; err != nil {
			return err
		}
		return appendTimeline(tx, order.ID, to, remarks, actor)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// orderStatusFilters maps the admin list filter to concrete status sets.
var orderStatusFilters = map[string][]OrderStatus{
	"ONGOING":   {OrderStatusPlaced, OrderStatusConfirmed, OrderStatusPacked, OrderStatusShipped},
	"DELIVERED": {OrderStatusDelivered},
	"CANCELLED": {OrderStatusCancelled, OrderStatusFailed, OrderStatusUnfulfilled},
}

type OrderFilter struct {
	Filter string // ONGOING | DELIVERED | CANCELLED
	Status OrderStatus
	UserId string
	Search string // order number or customer mobile
	Limit  int
	Offset int
}

func ListOrders(ctx context.Context, storeId string, filter OrderFilter) ([]Order, int64, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Order{}).Where("orders.store_id = ?", storeId)

	if filter.Filter != "" {
		statuses, ok := orderStatusFilters[filter.Filter]
		if !ok {
			return nil, 0, errors.New("unknown order filter")
		}
		query = query.Where("orders.status IN ?", statuses)
	}
	if filter.Status != "" {
		query = query.Where("orders.status = ?", filter.Status)
	}
	if filter.UserId != "" {
		query = query.Where("orders.user_id = ?", filter.UserId)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Joins("LEFT JOIN users u ON u.id = orders.user_id").
			Where("orders.order_number LIKE ? OR u.mobile LIKE ? OR u.name LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []Order
	err := query.Preload("LineItems").
		Order("orders.created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func GetOrderById(ctx context.Context, storeId string, orderId string) (*Order, error) {
	var order Order
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("LineItems").Preload("Timeline").
		Where("store_id = ? AND id = ?", storeId, orderId).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var order Order
	db := config.GetDB()
	err := db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListOrdersForUser is the storefront-facing order history.
func ListOrdersForUser(ctx context.Context, storeId string, userId string, limit int, offset int) ([]Order, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var orders []Order
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("LineItems").
		Where("store_id = ? AND user_id = ?", storeId, userId).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

type OrderStats struct {
	Status OrderStatus     `json:"status"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// GetOrderStats returns per-status order counts and amounts for the admin
// dashboard.
func GetOrderStats(ctx context.Context, storeId string, since time.Time) ([]OrderStats, error) {
	var stats []OrderStats
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("store_id = ? AND created_at >= ?", storeId, since).
		Group("status").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ListStaleInitiatedOrders returns orders stuck in INITIATED longer than the
// window, for the external sweeper that moves them to UNFULFILLED.
func ListStaleInitiatedOrders(ctx context.Context, storeId string, olderThan time.Duration, limit int) ([]Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	cutoff := time.Now().Add(-olderThan)
	var orders []Order
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("store_id = ? AND status = ? AND created_at < ?", storeId, OrderStatusInitiated, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// marshalAddressSnapshot freezes the address onto the order.
func marshalAddressSnapshot(address *Address) (string, error) {
	snapshot := map[string]string{
		"name":    address.Name,
		"mobile":  address.Mobile,
		"line1":   address.Line1,
		"line2":   address.Line2,
		"city":    address.City,
		"state":   address.State,
		"pincode": address.Pincode,
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
