package models

import (
	"context"
	"errors"
	"time"

	"github.com/sruthreads/storefront_backend/config"
)

// Store is the tenant record. Checkout and reconciliation read it for the
// order-number code and the per-tenant payment gateway credentials; nothing
// in the core mutates it.
type Store struct {
	ID          string `gorm:"size:36;primary_key" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Code        string `gorm:"size:10;not null" json:"code"` // short code embedded in order numbers, e.g. SRU
	Mobile      string `gorm:"size:20;uniqueIndex" json:"mobile"`
	Address     string `gorm:"type:text" json:"address"`
	Logo        string `gorm:"size:255" json:"logo"`
	GstNumber   string `gorm:"size:30" json:"gst_number"`
	Region      string `gorm:"size:5;default:IN" json:"region"`
	ProductCode string `gorm:"size:10" json:"product_code"` // prefix for generated product codes

	// Payment gateway credentials. Looked up per tenant, never hard-coded.
	GatewayName         string `gorm:"size:30;default:cashfree" json:"gateway_name"`
	GatewayClientId     string `gorm:"size:100" json:"-"`
	GatewayClientSecret string `gorm:"size:100" json:"-"`
	GatewayBaseUrl      string `gorm:"size:255" json:"-"`
	GatewayNotifyUrl    string `gorm:"size:255" json:"-"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedBy string    `gorm:"size:100" json:"created_by"`
	UpdatedBy string    `gorm:"size:100" json:"updated_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// StoreClient maps an API client identifier (mobile app, web) to its store.
// The store middleware resolves every request through this table.
type StoreClient struct {
	ID         string    `gorm:"size:36;primary_key" json:"id"`
	StoreId    string    `gorm:"size:36;index;not null" json:"store_id"`
	Identifier string    `gorm:"size:100;uniqueIndex;not null" json:"identifier"`
	ClientType string    `gorm:"size:20;not null" json:"client_type"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetStoreById(ctx context.Context, storeId string) (*Store, error) {
	var store Store
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", storeId).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// GetStoreByClientIdentifier resolves the tenant for an incoming request,
// redis first, db on miss.
func GetStoreByClientIdentifier(ctx context.Context, identifier string) (*Store, error) {
	cacheKey := "StoreClient:" + identifier
	var cached Store
	exists, err := config.GetRedisObject(cacheKey, &cached)
	if err == nil && exists && cached.ID != "" {
		return &cached, nil
	}

	db := config.GetDB()
	var client StoreClient
	if err := db.WithContext(ctx).Where("identifier = ? AND is_active = ?", identifier, true).First(&client).Error; err != nil {
		return nil, errors.New("unknown client identifier")
	}
	var store Store
	if err := db.WithContext(ctx).Where("id = ? AND is_active = ?", client.StoreId, true).First(&store).Error; err != nil {
		return nil, errors.New("store not found")
	}
	if err := config.SetRedisObject(cacheKey, &store, time.Hour); err != nil {
		config.LogError(config.GetLogger(), "store.go", "GetStoreByClientIdentifier", "SetRedisObject", cacheKey, err)
	}
	return &store, nil
}
