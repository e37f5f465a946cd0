package models

import (
	"context"
	"time"

	"github.com/sruthreads/storefront_backend/config"
)

// User is an external collaborator: the OTP auth service owns it. The core
// only reads name/mobile/email for gateway customer details and order views.
type User struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"`
	StoreId   string    `gorm:"size:36;index;not null" json:"store_id"`
	Name      string    `gorm:"size:100" json:"name"`
	Username  string    `gorm:"size:100" json:"username"`
	Mobile    string    `gorm:"size:20;index;not null" json:"mobile"`
	Email     string    `gorm:"size:100" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetUserById(ctx context.Context, storeId string, userId string) (*User, error) {
	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("store_id = ? AND id = ?", storeId, userId).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
