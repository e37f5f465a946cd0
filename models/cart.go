package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sruthreads/storefront_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is one product in a user's cart. At most one row per
// (store, user, product); quantity updates overwrite in place.
type CartLine struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"`
	StoreId   string    `gorm:"size:36;uniqueIndex:idx_cart_store_user_product;not null" json:"store_id"`
	UserId    string    `gorm:"size:36;uniqueIndex:idx_cart_store_user_product;not null" json:"user_id"`
	ProductId string    `gorm:"size:36;uniqueIndex:idx_cart_store_user_product;not null" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	Product   *Product  `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertCartLine sets the quantity for a product in the cart, inserting the
// row if absent. Quantity zero removes the line.
func UpsertCartLine(ctx context.Context, storeId string, userId string, productId string, quantity int64) (*CartLine, error) {
	if quantity < 0 {
		return nil, errors.New("quantity cannot be negative")
	}
	if quantity == 0 {
		return nil, RemoveCartLine(ctx, storeId, userId, productId)
	}

	db := config.GetDB()

	var product Product
	err := db.WithContext(ctx).
		Where("store_id = ? AND id = ? AND is_active = ?", storeId, productId, true).
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}

	line := CartLine{
		ID:        uuid.NewString(),
		StoreId:   storeId,
		UserId:    userId,
		ProductId: productId,
		Quantity:  quantity,
	}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}, {Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"quantity": quantity}),
	}).Create(&line).Error
	if err != nil {
		return nil, err
	}

	// Re-read so the caller sees the surviving row, not the candidate insert.
	var saved CartLine
	err = db.WithContext(ctx).Preload("Product").
		Where("store_id = ? AND user_id = ? AND product_id = ?", storeId, userId, productId).
		First(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func RemoveCartLine(ctx context.Context, storeId string, userId string, productId string) error {
	db := config.GetDB()
	return db.WithContext(ctx).
		Where("store_id = ? AND user_id = ? AND product_id = ?", storeId, userId, productId).
		Delete(&CartLine{}).Error
}

func GetCartLines(ctx context.Context, storeId string, userId string) ([]CartLine, error) {
	var lines []CartLine
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Product").
		Where("store_id = ? AND user_id = ?", storeId, userId).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ClearCart deletes all cart rows for the user inside the caller's
// transaction. Called when a payment completes.
func ClearCart(tx *gorm.DB, storeId string, userId string) error {
	return tx.Where("store_id = ? AND user_id = ?", storeId, userId).Delete(&CartLine{}).Error
}
