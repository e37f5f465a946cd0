package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryMovement is one append-only ledger entry. Rows are never updated
// or deleted; corrections are recorded as compensating movements. Current
// stock for a product is the quantity_after of its latest row.
type InventoryMovement struct {
	ID        string                `gorm:"size:36;primary_key" json:"id"`
	StoreId   string                `gorm:"size:36;index;not null" json:"store_id"`
	ProductId string                `gorm:"size:36;index:idx_movement_product" json:"product_id"`
	Type      InventoryMovementType `gorm:"size:20;not null" json:"type"`

	Quantity       int64 `gorm:"not null" json:"quantity"`
	QuantityBefore int64 `gorm:"not null" json:"quantity_before"`
	QuantityAfter  int64 `gorm:"not null" json:"quantity_after"`

	// Total prices for the movement; the per-unit rates are derived at write
	// time and rounded to 2dp. Purchase-side movements carry purchase price,
	// sale-side carry sale price, the other side stays zero.
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"purchase_price"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"sale_price"`
	PurchaseRate  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"purchase_rate"`
	SaleRate      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"sale_rate"`

	Reference string    `gorm:"size:100" json:"reference"`
	Remarks   string    `gorm:"size:255" json:"remarks"`
	CreatedBy string    `gorm:"size:100" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_movement_product" json:"created_at"`
}

// ApplyMovement returns the stock level after applying a movement to the
// given level. PURCHASE and SALE_RETURN add; SELL and PURCHASE_RETURN
// subtract and must not take the level negative.
func ApplyMovement(before int64, movementType InventoryMovementType, quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, errors.New("quantity must be positive")
	}
	switch movementType {
	case MovementPurchase, MovementSaleReturn:
		return before + quantity, nil
	case MovementSell, MovementPurchaseReturn:
		if quantity > before {
			return 0, ErrInsufficientStock
		}
		return before - quantity, nil
	}
	return 0, errors.New("unknown movement type")
}

// DeriveRate returns price per unit rounded to 2dp; zero when quantity is
// zero so the derivation never divides by zero.
func DeriveRate(price decimal.Decimal, quantity int64) decimal.Decimal {
	if quantity == 0 {
		return decimal.Zero
	}
	return price.Div(decimal.NewFromInt(quantity)).Round(2)
}

func isPurchaseSide(t InventoryMovementType) bool {
	return t == MovementPurchase || t == MovementPurchaseReturn
}

type MovementInput struct {
	ProductId     string                `json:"product_id" binding:"required"`
	Type          InventoryMovementType `json:"type" binding:"required,movementtype"`
	Quantity      int64                 `json:"quantity" binding:"required"`
	PurchasePrice decimal.Decimal       `json:"purchase_price"`
	SalePrice     decimal.Decimal       `json:"sale_price"`
	Reference     string                `json:"reference"`
	Remarks       string                `json:"remarks"`
}

// RecordMovement appends a ledger entry. quantity_before comes from the
// latest movement for the product (zero when none exists), and the product's
// cached stock follows the new quantity_after in the same transaction. The
// product row is locked first so concurrent movements serialize and the
// before/after chain never skips.
func RecordMovement(ctx context.Context, storeId string, input MovementInput, actor string) (*InventoryMovement, error) {
	if !input.Type.Valid() {
		return nil, errors.New("unknown movement type")
	}
	if isPurchaseSide(input.Type) {
		if !input.PurchasePrice.IsPositive() {
			return nil, errors.New("purchase price is required for purchase-side movements")
		}
	} else if !input.SalePrice.IsPositive() {
		return nil, errors.New("sale price is required for sale-side movements")
	}

	db := config.GetDB()
	var movement InventoryMovement
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ? AND id = ?", storeId, input.ProductId).
			First(&product).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrProductUnavailable
			}
			return err
		}

		var before int64
		var last InventoryMovement
		err = tx.Where("store_id = ? AND product_id = ?", storeId, input.ProductId).
			Order("created_at DESC, id DESC").
			First(&last).Error
		if err == nil {
			before = last.QuantityAfter
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		after, err := ApplyMovement(before, input.Type, input.Quantity)
		if err != nil {
			return err
		}

		movement = InventoryMovement{
			ID:             uuid.NewString(),
			StoreId:        storeId,
			ProductId:      input.ProductId,
			Type:           input.Type,
			Quantity:       input.Quantity,
			QuantityBefore: before,
			QuantityAfter:  after,
			CreatedBy:      actor,
			Reference:      input.Reference,
			Remarks:        input.Remarks,
		}
		if isPurchaseSide(input.Type) {
			movement.PurchasePrice = input.PurchasePrice
			movement.PurchaseRate = DeriveRate(input.PurchasePrice, input.Quantity)
		} else {
			movement.SalePrice = input.SalePrice
			movement.SaleRate = DeriveRate(input.SalePrice, input.Quantity)
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}
		return tx.Model(&Product{}).Where("id = ?", product.ID).
			Update("current_stock", after).Error
	})
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

// CurrentLedgerStock derives stock from the ledger alone: the latest
// movement's quantity_after, zero when the product has no movements.
func CurrentLedgerStock(ctx context.Context, storeId string, productId string) (int64, error) {
	db := config.GetDB()
	var last InventoryMovement
	err := db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeId, productId).
		Order("created_at DESC, id DESC").
		First(&last).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.QuantityAfter, nil
}

func GetMovementById(ctx context.Context, storeId string, movementId string) (*InventoryMovement, error) {
	var movement InventoryMovement
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("store_id = ? AND id = ?", storeId, movementId).
		First(&movement).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMovementNotFound
		}
		return nil, err
	}
	return &movement, nil
}

type MovementFilter struct {
	ProductId string
	Type      InventoryMovementType
	Limit     int
	Offset    int
}

func ListMovements(ctx context.Context, storeId string, filter MovementFilter) ([]InventoryMovement, int64, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&InventoryMovement{}).Where("store_id = ?", storeId)
	if filter.ProductId != "" {
		query = query.Where("product_id = ?", filter.ProductId)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var movements []InventoryMovement
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&movements).Error
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}
