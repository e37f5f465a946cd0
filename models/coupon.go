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

type Coupon struct {
	ID          string             `gorm:"size:36;primary_key" json:"id"`
	StoreId     string             `gorm:"size:36;index;not null" json:"store_id"`
	Code        string             `gorm:"size:50;not null" json:"code"`
	Description string             `gorm:"size:255" json:"description"`
	TargetType  CouponTargetType   `gorm:"size:20;not null" json:"target_type"`
	Discount    CouponDiscountType `gorm:"size:20;not null;column:discount_type" json:"discount_type"`

	DiscountValue     decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"discount_value"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount_amount"`
	MinOrderAmount    decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"min_order_amount"`
	MinProductAmount  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"min_product_amount"`

	FirstOrderOnly bool   `gorm:"not null;default:false" json:"first_order_only"`
	UsageLimit     *int64 `json:"usage_limit"`
	PerUserLimit   *int64 `json:"per_user_limit"`

	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`

	Products   []Product  `gorm:"many2many:coupon_products" json:"products,omitempty"`
	Categories []Category `gorm:"many2many:coupon_categories" json:"categories,omitempty"`
	Tags       []Tag      `gorm:"many2many:coupon_tags" json:"tags,omitempty"`

	CreatedBy string    `gorm:"size:100" json:"created_by"`
	UpdatedBy string    `gorm:"size:100" json:"updated_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CouponUsage is the source of truth for usage counts. A row is written only
// when the payment for the order completes, never at evaluation time.
type CouponUsage struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"`
	StoreId   string    `gorm:"size:36;index;not null" json:"store_id"`
	CouponId  string    `gorm:"size:36;index:idx_usage_coupon_user" json:"coupon_id"`
	UserId    string    `gorm:"size:36;index:idx_usage_coupon_user" json:"user_id"`
	OrderId   string    `gorm:"size:36;uniqueIndex" json:"order_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// EvalLineItem is a priced candidate line handed to the evaluator. LineTotal
// is selling_price * qty from the locked product snapshot.
type EvalLineItem struct {
	ProductId string
	Quantity  int64
	LineTotal decimal.Decimal
}

// CouponResult carries the computed discount and its per-product split. The
// apportionment sums exactly to Discount; the rounding remainder lands on the
// last eligible line.
type CouponResult struct {
	Coupon        *Coupon
	Discount      decimal.Decimal
	Apportionment map[string]decimal.Decimal
}

// RawDiscount computes the uncapped discount for the eligible amount, then
// applies the cap chain: max_discount_amount, eligible amount, subtotal.
// Never refunds more than was eligible.
func RawDiscount(discountType CouponDiscountType, discountValue decimal.Decimal,
	maxDiscount decimal.NullDecimal, eligibleAmount decimal.Decimal, subtotal decimal.Decimal) decimal.Decimal {

	var discount decimal.Decimal
	switch discountType {
	case DiscountFlat:
		discount = discountValue
	case DiscountPercentage:
		discount = eligibleAmount.Mul(discountValue).Div(decimal.NewFromInt(100)).Round(2)
	default:
		return decimal.Zero
	}

	if maxDiscount.Valid && discount.GreaterThan(maxDiscount.Decimal) {
		discount = maxDiscount.Decimal
	}
	if discount.GreaterThan(eligibleAmount) {
		discount = eligibleAmount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// ApportionDiscount splits discount across the eligible lines in proportion
// to lineTotal / eligibleAmount, rounded to 2dp per line. Zero-total lines
// get no share. Each share is clamped to the discount still unallocated so
// rounding can never push a later line negative; the last positive line
// absorbs the remainder and the parts sum exactly to the whole.
func ApportionDiscount(discount decimal.Decimal, eligible []EvalLineItem, eligibleAmount decimal.Decimal) map[string]decimal.Decimal {
	apportionment := make(map[string]decimal.Decimal, len(eligible))
	if eligibleAmount.LessThanOrEqual(decimal.Zero) {
		return apportionment
	}
	lines := make([]EvalLineItem, 0, len(eligible))
	for _, item := range eligible {
		if item.LineTotal.IsPositive() {
			lines = append(lines, item)
		}
	}
	if len(lines) == 0 {
		return apportionment
	}
	allocated := decimal.Zero
	for i, item := range lines {
		if i == len(lines)-1 {
			apportionment[item.ProductId] = discount.Sub(allocated)
			break
		}
		share := discount.Mul(item.LineTotal).Div(eligibleAmount).Round(2)
		if remaining := discount.Sub(allocated); share.GreaterThan(remaining) {
			share = remaining
		}
		apportionment[item.ProductId] = share
		allocated = allocated.Add(share)
	}
	return apportionment
}

// EvaluateCoupon decides eligibility and computes the discount for the given
// priced lines. Runs inside the caller's transaction so the usage-count reads
// share the checkout's isolation. Failures are typed; the checkout surfaces
// them instead of degrading to "no discount".
func EvaluateCoupon(tx *gorm.DB, storeId string, userId string, items []EvalLineItem,
	subtotal decimal.Decimal, code string) (*CouponResult, error) {

	now := time.Now()
	var coupon Coupon
	err := tx.Where("store_id = ? AND LOWER(code) = LOWER(?) AND is_active = ?", storeId, code, true).
		Where("start_date <= ? AND end_date >= ?", now, now).
		First(&coupon).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}

	if coupon.FirstOrderOnly {
		var prior int64
		err := tx.Model(&Order{}).
			Where("store_id = ? AND user_id = ? AND status IN ?", storeId, userId, completedOrderStatuses).
			Count(&prior).Error
		if err != nil {
			return nil, err
		}
		if prior > 0 {
			return nil, ErrCouponNotEligible
		}
	}

	if subtotal.LessThan(coupon.MinOrderAmount) {
		return nil, ErrCouponMinimumNotMet
	}

	eligible, eligibleAmount, err := eligibleLineItems(tx, &coupon, items)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 || eligibleAmount.IsZero() {
		return nil, ErrCouponNotApplicable
	}
	if coupon.MinProductAmount.Valid && eligibleAmount.LessThan(coupon.MinProductAmount.Decimal) {
		return nil, ErrCouponMinimumNotMet
	}

	if coupon.UsageLimit != nil {
		var used int64
		if err := tx.Model(&CouponUsage{}).Where("coupon_id = ?", coupon.ID).Count(&used).Error; err != nil {
			return nil, err
		}
		if used >= *coupon.UsageLimit {
			return nil, ErrCouponUsageLimit
		}
	}
	if coupon.PerUserLimit != nil {
		var used int64
		err := tx.Model(&CouponUsage{}).
			Where("coupon_id = ? AND user_id = ?", coupon.ID, userId).
			Count(&used).Error
		if err != nil {
			return nil, err
		}
		if used >= *coupon.PerUserLimit {
			return nil, ErrCouponPerUserLimit
		}
	}

	discount := RawDiscount(coupon.Discount, coupon.DiscountValue, coupon.MaxDiscountAmount, eligibleAmount, subtotal)
	if discount.IsZero() {
		return nil, ErrCouponNotApplicable
	}

	return &CouponResult{
		Coupon:        &coupon,
		Discount:      discount,
		Apportionment: ApportionDiscount(discount, eligible, eligibleAmount),
	}, nil
}

// eligibleLineItems filters the candidate lines by the coupon's target.
// ORDER and SHIPPING cover everything; PRODUCT/CATEGORY/TAG intersect the
// coupon's join tables.
func eligibleLineItems(tx *gorm.DB, coupon *Coupon, items []EvalLineItem) ([]EvalLineItem, decimal.Decimal, error) {
	switch coupon.TargetType {
	case CouponTargetOrder, CouponTargetShipping:
		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.LineTotal)
		}
		return items, total, nil
	}

	productIds := make([]string, 0, len(items))
	for _, item := range items {
		productIds = append(productIds, item.ProductId)
	}

	var matched []string
	var err error
	switch coupon.TargetType {
	case CouponTargetProduct:
		err = tx.Table("coupon_products").
			Where("coupon_id = ? AND product_id IN ?", coupon.ID, productIds).
			Pluck("product_id", &matched).Error
	case CouponTargetCategory:
		err = tx.Table("product_categories").
			Where("product_id IN ?", productIds).
			Where("category_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
				Table("coupon_categories").Select("category_id").Where("coupon_id = ?", coupon.ID)).
			Pluck("product_id", &matched).Error
	case CouponTargetTag:
		err = tx.Table("product_tags").
			Where("product_id IN ?", productIds).
			Where("tag_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
				Table("coupon_tags").Select("tag_id").Where("coupon_id = ?", coupon.ID)).
			Pluck("product_id", &matched).Error
	default:
		return nil, decimal.Zero, errors.New("unknown coupon target type")
	}
	if err != nil {
		return nil, decimal.Zero, err
	}

	matchedSet := make(map[string]bool, len(matched))
	for _, id := range matched {
		matchedSet[id] = true
	}

	eligible := make([]EvalLineItem, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		if matchedSet[item.ProductId] {
			eligible = append(eligible, item)
			total = total.Add(item.LineTotal)
		}
	}
	return eligible, total, nil
}

type CouponInput struct {
	Code              string              `json:"code" binding:"required"`
	Description       string              `json:"description"`
	TargetType        CouponTargetType    `json:"target_type" binding:"required"`
	DiscountType      CouponDiscountType  `json:"discount_type" binding:"required"`
	DiscountValue     decimal.Decimal     `json:"discount_value" binding:"required"`
	MaxDiscountAmount decimal.NullDecimal `json:"max_discount_amount"`
	MinOrderAmount    decimal.Decimal     `json:"min_order_amount"`
	MinProductAmount  decimal.NullDecimal `json:"min_product_amount"`
	FirstOrderOnly    bool                `json:"first_order_only"`
	UsageLimit        *int64              `json:"usage_limit"`
	PerUserLimit      *int64              `json:"per_user_limit"`
	StartDate         time.Time           `json:"start_date" binding:"required"`
	EndDate           time.Time           `json:"end_date" binding:"required"`
	ProductIds        []string            `json:"product_ids"`
	CategoryIds       []string            `json:"category_ids"`
	TagIds            []string            `json:"tag_ids"`
}

// CreateCoupon validates and inserts a coupon with its target associations.
// Admin only.
func CreateCoupon(ctx context.Context, storeId string, input CouponInput, actor string) (*Coupon, error) {
	if !input.TargetType.Valid() {
		return nil, errors.New("unknown target type")
	}
	if !input.DiscountType.Valid() {
		return nil, errors.New("unknown discount type")
	}
	if input.DiscountValue.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("discount value must be positive")
	}
	if input.DiscountType == DiscountPercentage && input.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("percentage discount cannot exceed 100")
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, errors.New("end date must be after start date")
	}

	db := config.GetDB()
	var coupon Coupon
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&Coupon{}).
			Where("store_id = ? AND LOWER(code) = LOWER(?)", storeId, input.Code).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return errors.New("coupon code already exists")
		}

		coupon = Coupon{
			ID:                uuid.NewString(),
			StoreId:           storeId,
			Code:              input.Code,
			Description:       input.Description,
			TargetType:        input.TargetType,
			Discount:          input.DiscountType,
			DiscountValue:     input.DiscountValue,
			MaxDiscountAmount: input.MaxDiscountAmount,
			MinOrderAmount:    input.MinOrderAmount,
			MinProductAmount:  input.MinProductAmount,
			FirstOrderOnly:    input.FirstOrderOnly,
			UsageLimit:        input.UsageLimit,
			PerUserLimit:      input.PerUserLimit,
			StartDate:         input.StartDate,
			EndDate:           input.EndDate,
			IsActive:          true,
			CreatedBy:         actor,
			UpdatedBy:         actor,
		}
		if err := tx.Create(&coupon).Error; err != nil {
			return err
		}
		return replaceCouponAssociations(tx, &coupon, storeId, input)
	})
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func replaceCouponAssociations(tx *gorm.DB, coupon *Coupon, storeId string, input CouponInput) error {
	if input.TargetType == CouponTargetProduct {
		if len(input.ProductIds) == 0 {
			return errors.New("product target requires product ids")
		}
		var products []Product
		if err := tx.Where("store_id = ? AND id IN ?", storeId, input.ProductIds).Find(&products).Error; err != nil {
			return err
		}
		if len(products) != len(input.ProductIds) {
			return errors.New("unknown product id")
		}
		return tx.Model(coupon).Association("Products").Replace(products)
	}
	if input.TargetType == CouponTargetCategory {
		if len(input.CategoryIds) == 0 {
			return errors.New("category target requires category ids")
		}
		var categories []Category
		if err := tx.Where("store_id = ? AND id IN ?", storeId, input.CategoryIds).Find(&categories).Error; err != nil {
			return err
		}
		if len(categories) != len(input.CategoryIds) {
			return errors.New("unknown category id")
		}
		return tx.Model(coupon).Association("Categories").Replace(categories)
	}
	if input.TargetType == CouponTargetTag {
		if len(input.TagIds) == 0 {
			return errors.New("tag target requires tag ids")
		}
		var tags []Tag
		if err := tx.Where("store_id = ? AND id IN ?", storeId, input.TagIds).Find(&tags).Error; err != nil {
			return err
		}
		if len(tags) != len(input.TagIds) {
			return errors.New("unknown tag id")
		}
		return tx.Model(coupon).Association("Tags").Replace(tags)
	}
	return nil
}

func ListCoupons(ctx context.Context, storeId string, activeOnly bool) ([]Coupon, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Where("store_id = ?", storeId)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var coupons []Coupon
	if err := query.Order("created_at DESC").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// DeactivateCoupon stops further redemptions; past usages remain.
func DeactivateCoupon(ctx context.Context, storeId string, couponId string, actor string) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Coupon{}).
		Where("store_id = ? AND id = ?", storeId, couponId).
		Updates(map[string]interface{}{"is_active": false, "updated_by": actor})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCouponNotFound
	}
	return nil
}
