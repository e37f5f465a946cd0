package models

import (
	"context"
	"time"

	"github.com/sruthreads/storefront_backend/config"
)

// Address rows are owned by the auth/profile service; checkout only reads
// one to freeze a snapshot onto the order.
type Address struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"`
	StoreId   string    `gorm:"size:36;index;not null" json:"store_id"`
	UserId    string    `gorm:"size:36;index;not null" json:"user_id"`
	Name      string    `gorm:"size:100" json:"name"`
	Mobile    string    `gorm:"size:20" json:"mobile"`
	Line1     string    `gorm:"size:255" json:"line1"`
	Line2     string    `gorm:"size:255" json:"line2"`
	City      string    `gorm:"size:100" json:"city"`
	State     string    `gorm:"size:100" json:"state"`
	Pincode   string    `gorm:"size:10" json:"pincode"`
	IsDefault bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetAddressForUser fetches an address only if it belongs to the user, so a
// checkout cannot snapshot someone else's address.
func GetAddressForUser(ctx context.Context, storeId string, userId string, addressId string) (*Address, error) {
	var address Address
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("store_id = ? AND user_id = ? AND id = ?", storeId, userId, addressId).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}
