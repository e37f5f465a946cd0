package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/config"
	"gorm.io/gorm"
)

type Category struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"`
	StoreId   string    `gorm:"size:36;index;not null" json:"store_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Tag struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"`
	StoreId   string    `gorm:"size:36;index;not null" json:"store_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Product struct {
	ID          string `gorm:"size:36;primary_key" json:"id"`
	StoreId     string `gorm:"size:36;uniqueIndex:idx_product_store_sku;not null" json:"store_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Sku         string `gorm:"size:100;uniqueIndex:idx_product_store_sku;not null" json:"sku"`
	Code        string `gorm:"size:30" json:"code"`
	Description string `gorm:"type:text" json:"description"`
	Image       string `gorm:"size:255" json:"image"`
	Unit        string `gorm:"size:20" json:"unit"`

	Mrp           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"mrp"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"selling_price"`
	GstPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"gst_percentage"`
	GstAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"gst_amount"`

	// CurrentStock is the sellable quantity checkout decrements under a row
	// lock. The inventory movement ledger is maintained separately by the
	// back office and is not consulted on the checkout path.
	CurrentStock int64 `gorm:"not null;default:0" json:"current_stock"`

	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	Categories []Category `gorm:"many2many:product_categories" json:"categories,omitempty"`
	Tags       []Tag      `gorm:"many2many:product_tags" json:"tags,omitempty"`
	CreatedBy  string     `gorm:"size:100" json:"created_by"`
	UpdatedBy  string     `gorm:"size:100" json:"updated_by"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DeriveGstAmount computes the tax portion already contained in a
// GST-inclusive selling price: price - price*100/(100+gst), rounded to 2dp.
func DeriveGstAmount(sellingPrice decimal.Decimal, gstPercentage decimal.Decimal) decimal.Decimal {
	if gstPercentage.IsZero() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	base := sellingPrice.Mul(hundred).Div(hundred.Add(gstPercentage))
	return sellingPrice.Sub(base).Round(2)
}

type ProductInput struct {
	Name          string          `json:"name" binding:"required"`
	Sku           string          `json:"sku" binding:"required"`
	Description   string          `json:"description"`
	Image         string          `json:"image"`
	Unit          string          `json:"unit"`
	Mrp           decimal.Decimal `json:"mrp" binding:"required"`
	SellingPrice  decimal.Decimal `json:"selling_price" binding:"required"`
	GstPercentage decimal.Decimal `json:"gst_percentage"`
	CurrentStock  int64           `json:"current_stock"`
	CategoryIds   []string        `json:"category_ids"`
	TagIds        []string        `json:"tag_ids"`
}

// CreateProduct inserts a product with a generated code from the per-store
// product sequence and the derived GST amount. Admin only.
func CreateProduct(ctx context.Context, storeId string, input ProductInput, actor string) (*Product, error) {
	if input.SellingPrice.GreaterThan(input.Mrp) {
		return nil, errors.New("selling price cannot exceed mrp")
	}
	if input.SellingPrice.IsNegative() || input.Mrp.IsNegative() {
		return nil, errors.New("price cannot be negative")
	}
	if input.CurrentStock < 0 {
		return nil, errors.New("current stock cannot be negative")
	}

	store, err := GetStoreById(ctx, storeId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var product Product
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := NextSequence(tx, storeId, SequenceKindProduct)
		if err != nil {
			return err
		}
		product = Product{
			ID:            uuid.NewString(),
			StoreId:       storeId,
			Name:          input.Name,
			Sku:           input.Sku,
			Code:          FormatProductCode(store.ProductCode, n),
			Description:   input.Description,
			Image:         input.Image,
			Unit:          input.Unit,
			Mrp:           input.Mrp,
			SellingPrice:  input.SellingPrice,
			GstPercentage: input.GstPercentage,
			GstAmount:     DeriveGstAmount(input.SellingPrice, input.GstPercentage),
			CurrentStock:  input.CurrentStock,
			IsActive:      true,
			CreatedBy:     actor,
			UpdatedBy:     actor,
		}
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		if err := replaceProductAssociations(tx, &product, storeId, input.CategoryIds, input.TagIds); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct rewrites the editable fields and re-derives the GST amount.
// Stock is not editable here; the inventory ledger owns stock corrections.
func UpdateProduct(ctx context.Context, storeId string, productId string, input ProductInput, actor string) (*Product, error) {
	if input.SellingPrice.GreaterThan(input.Mrp) {
		return nil, errors.New("selling price cannot exceed mrp")
	}

	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_id = ? AND id = ?", storeId, productId).First(&product).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrProductUnavailable
			}
			return err
		}
		product.Name = input.Name
		product.Sku = input.Sku
		product.Description = input.Description
		product.Image = input.Image
		product.Unit = input.Unit
		product.Mrp = input.Mrp
		product.SellingPrice = input.SellingPrice
		product.GstPercentage = input.GstPercentage
		product.GstAmount = DeriveGstAmount(input.SellingPrice, input.GstPercentage)
		product.UpdatedBy = actor
		if err := tx.Save(&product).Error; err != nil {
			return err
		}
		return replaceProductAssociations(tx, &product, storeId, input.CategoryIds, input.TagIds)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func replaceProductAssociations(tx *gorm.DB, product *Product, storeId string, categoryIds []string, tagIds []string) error {
	if categoryIds != nil {
		var categories []Category
		if err := tx.Where("store_id = ? AND id IN ?", storeId, categoryIds).Find(&categories).Error; err != nil {
			return err
		}
		if len(categories) != len(categoryIds) {
			return errors.New("unknown category id")
		}
		if err := tx.Model(product).Association("Categories").Replace(categories); err != nil {
			return err
		}
	}
	if tagIds != nil {
		var tags []Tag
		if err := tx.Where("store_id = ? AND id IN ?", storeId, tagIds).Find(&tags).Error; err != nil {
			return err
		}
		if len(tags) != len(tagIds) {
			return errors.New("unknown tag id")
		}
		if err := tx.Model(product).Association("Tags").Replace(tags); err != nil {
			return err
		}
	}
	return nil
}

// DeactivateProduct soft-deletes: the product stops being sellable but past
// orders keep referencing it.
func DeactivateProduct(ctx context.Context, storeId string, productId string, actor string) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Product{}).
		Where("store_id = ? AND id = ?", storeId, productId).
		Updates(map[string]interface{}{"is_active": false, "updated_by": actor})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductUnavailable
	}
	return nil
}

type ProductFilter struct {
	Search     string
	CategoryId string
	TagId      string
	ActiveOnly bool
	InStock    bool
	Limit      int
	Offset     int
}

func ListProducts(ctx context.Context, storeId string, filter ProductFilter) ([]Product, int64, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Product{}).Where("products.store_id = ?", storeId)

	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("products.name LIKE ? OR products.sku LIKE ? OR products.code LIKE ?", like, like, like)
	}
	if filter.CategoryId != "" {
		query = query.Joins("JOIN product_categories pc ON pc.product_id = products.id").
			Where("pc.category_id = ?", filter.CategoryId)
	}
	if filter.TagId != "" {
		query = query.Joins("JOIN product_tags pt ON pt.product_id = products.id").
			Where("pt.tag_id = ?", filter.TagId)
	}
	if filter.ActiveOnly {
		query = query.Where("products.is_active = ?", true)
	}
	if filter.InStock {
		query = query.Where("products.current_stock > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var products []Product
	err := query.Preload("Categories").Preload("Tags").
		Order("products.created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func GetProductById(ctx context.Context, storeId string, productId string) (*Product, error) {
	var product Product
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Categories").Preload("Tags").
		Where("store_id = ? AND id = ?", storeId, productId).
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	return &product, nil
}
