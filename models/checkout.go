package models

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/config"
	"github.com/sruthreads/storefront_backend/gateway"
	"github.com/sruthreads/storefront_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CheckoutProduct struct {
	ProductId string `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

type CheckoutInput struct {
	AddressId  string            `json:"address_id" binding:"required"`
	Products   []CheckoutProduct `json:"products" binding:"required,min=1,dive"`
	CouponCode string            `json:"coupon_code"`
}

type CheckoutResult struct {
	OrderNumber      string          `json:"order_number"`
	PaymentSessionId string          `json:"payment_session_id"`
	GatewayOrderId   string          `json:"gateway_order_id"`
	Amount           decimal.Decimal `json:"amount"`
}

// InitiateOrder runs the whole checkout inside one transaction: lock stock,
// price from locked snapshots, evaluate the coupon, persist order, line
// items, timeline and payment, then call the gateway for a session. Any
// failure, including a gateway failure, rolls everything back so no partial
// order is ever visible. The gateway round-trip holds the product locks for
// its duration; the session timeout bounds that.
func InitiateOrder(ctx context.Context, store *Store, userId string, input CheckoutInput,
	gw gateway.Client, actor string) (*CheckoutResult, error) {

	if len(input.Products) == 0 {
		return nil, errors.New("no products in checkout")
	}
	seen := make(map[string]bool, len(input.Products))
	for _, p := range input.Products {
		if p.Quantity <= 0 {
			return nil, errors.New("quantity must be positive")
		}
		if seen[p.ProductId] {
			return nil, errors.New("duplicate product in checkout")
		}
		seen[p.ProductId] = true
	}
	products := sortedByProductId(input.Products)

	user, err := GetUserById(ctx, store.ID, userId)
	if err != nil {
		return nil, errors.New("user not found")
	}
	address, err := GetAddressForUser(ctx, store.ID, userId, input.AddressId)
	if err != nil {
		return nil, errors.New("address not found")
	}
	snapshot, err := marshalAddressSnapshot(address)
	if err != nil {
		return nil, err
	}

	phone, err := utils.NormalizeMobile(user.Mobile, store.Region)
	if err != nil {
		return nil, errors.New("user mobile is not a valid phone number")
	}

	db := config.GetDB()
	logger := config.GetLogger()

	var result CheckoutResult
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mrpTotal := decimal.Zero
		subtotal := decimal.Zero
		evalItems := make([]EvalLineItem, 0, len(products))
		lineItems := make([]OrderLineItem, 0, len(products))

		for _, requested := range products {
			var product Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("store_id = ? AND id = ?", store.ID, requested.ProductId).
				First(&product).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrProductUnavailable
				}
				return err
			}
			if !product.IsActive {
				return ErrProductUnavailable
			}
			if product.CurrentStock < requested.Quantity {
				return ErrOutOfStock
			}

			qty := decimal.NewFromInt(requested.Quantity)
			lineTotal := product.SellingPrice.Mul(qty)
			mrpTotal = mrpTotal.Add(product.Mrp.Mul(qty))
			subtotal = subtotal.Add(lineTotal)

			evalItems = append(evalItems, EvalLineItem{
				ProductId: product.ID,
				Quantity:  requested.Quantity,
				LineTotal: lineTotal,
			})
			lineItems = append(lineItems, OrderLineItem{
				ID:             uuid.NewString(),
				ProductId:      product.ID,
				Sku:            product.Sku,
				Name:           product.Name,
				Image:          product.Image,
				Mrp:            product.Mrp,
				SellingPrice:   product.SellingPrice,
				Quantity:       requested.Quantity,
				ApportionedGst: product.GstAmount.Mul(qty),
			})

			err = tx.Model(&Product{}).Where("id = ?", product.ID).
				Update("current_stock", product.CurrentStock-requested.Quantity).Error
			if err != nil {
				return err
			}
		}

		discount := decimal.Zero
		couponId := ""
		couponCode := ""
		if input.CouponCode != "" {
			evaluated, err := EvaluateCoupon(tx, store.ID, userId, evalItems, subtotal, input.CouponCode)
			if err != nil {
				return err
			}
			discount = evaluated.Discount
			couponId = evaluated.Coupon.ID
			couponCode = evaluated.Coupon.Code
			for i := range lineItems {
				if share, ok := evaluated.Apportionment[lineItems[i].ProductId]; ok {
					lineItems[i].ApportionedDiscount = share
				}
			}
		}

		amount := subtotal.Sub(discount)
		if amount.IsNegative() {
			return errors.New("order amount cannot be negative")
		}

		n, err := NextSequence(tx, store.ID, SequenceKindOrder)
		if err != nil {
			return err
		}
		orderNumber := FormatOrderNumber(store.Code, n)

		order := Order{
			ID:              uuid.NewString(),
			StoreId:         store.ID,
			UserId:          userId,
			OrderNumber:     orderNumber,
			AddressSnapshot: snapshot,
			MrpTotal:        mrpTotal,
			SellingSubtotal: subtotal,
			CouponDiscount:  discount,
			CouponId:        couponId,
			CouponCode:      couponCode,
			Amount:          amount,
			Status:          OrderStatusInitiated,
			CreatedBy:       actor,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for i := range lineItems {
			lineItems[i].OrderId = order.ID
			lineItems[i].ApportionedOnline = lineItems[i].SellingPrice.
				Mul(decimal.NewFromInt(lineItems[i].Quantity)).
				Sub(lineItems[i].ApportionedDiscount)
		}
		if err := tx.Create(&lineItems).Error; err != nil {
			return err
		}
		if err := appendTimeline(tx, order.ID, OrderStatusInitiated, "order initiated", actor); err != nil {
			return err
		}

		payment := Payment{
			ID:      uuid.NewString(),
			StoreId: store.ID,
			OrderId: order.ID,
			Gateway: store.GatewayName,
			Amount:  amount,
			Status:  PaymentStatusInitiated,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		session, err := gw.CreateSession(ctx, gatewayCredentials(store), orderNumber, amount, gateway.Customer{
			Id:    userId,
			Name:  user.Name,
			Phone: phone,
		})
		if err != nil {
			config.LogError(logger, "checkout.go", "InitiateOrder", "CreateSession", orderNumber, err)
			return err
		}

		err = tx.Model(&Payment{}).Where("id = ?", payment.ID).
			Updates(map[string]interface{}{
				"session_id":       session.SessionId,
				"gateway_order_id": session.GatewayOrderId,
			}).Error
		if err != nil {
			return err
		}

		result = CheckoutResult{
			OrderNumber:      orderNumber,
			PaymentSessionId: session.SessionId,
			GatewayOrderId:   session.GatewayOrderId,
			Amount:           amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckoutFromCart reads the user's cart rows and runs InitiateOrder with
// them. The cart itself is cleared only when the payment completes.
func CheckoutFromCart(ctx context.Context, store *Store, userId string, addressId string,
	couponCode string, gw gateway.Client, actor string) (*CheckoutResult, error) {

	lines, err := GetCartLines(ctx, store.ID, userId)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("cart is empty")
	}
	input := CheckoutInput{
		AddressId:  addressId,
		CouponCode: couponCode,
		Products:   make([]CheckoutProduct, 0, len(lines)),
	}
	for _, line := range lines {
		input.Products = append(input.Products, CheckoutProduct{
			ProductId: line.ProductId,
			Quantity:  line.Quantity,
		})
	}
	return InitiateOrder(ctx, store, userId, input, gw, actor)
}

// CreateAdminOrder records an order the admin took over the counter or by
// phone: same stock locking and snapshotting as checkout, but no gateway
// session and no coupon. The order starts CONFIRMED with the full amount
// treated as collected.
func CreateAdminOrder(ctx context.Context, store *Store, userId string, addressId string,
	products []CheckoutProduct, actor string) (*Order, error) {

	if len(products) == 0 {
		return nil, errors.New("no products in order")
	}

	address, err := GetAddressForUser(ctx, store.ID, userId, addressId)
	if err != nil {
		return nil, errors.New("address not found")
	}
	snapshot, err := marshalAddressSnapshot(address)
	if err != nil {
		return nil, err
	}

	ordered := sortedByProductId(products)

	db := config.GetDB()
	var order Order
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mrpTotal := decimal.Zero
		subtotal := decimal.Zero
		lineItems := make([]OrderLineItem, 0, len(ordered))

		for _, requested := range ordered {
			if requested.Quantity <= 0 {
				return errors.New("quantity must be positive")
			}
			var product Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("store_id = ? AND id = ?", store.ID, requested.ProductId).
				First(&product).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrProductUnavailable
				}
				return err
			}
			if !product.IsActive {
				return ErrProductUnavailable
			}
			if product.CurrentStock < requested.Quantity {
				return ErrOutOfStock
			}

			qty := decimal.NewFromInt(requested.Quantity)
			lineTotal := product.SellingPrice.Mul(qty)
			mrpTotal = mrpTotal.Add(product.Mrp.Mul(qty))
			subtotal = subtotal.Add(lineTotal)

			lineItems = append(lineItems, OrderLineItem{
				ID:                uuid.NewString(),
				ProductId:         product.ID,
				Sku:               product.Sku,
				Name:              product.Name,
				Image:             product.Image,
				Mrp:               product.Mrp,
				SellingPrice:      product.SellingPrice,
				Quantity:          requested.Quantity,
				ApportionedOnline: lineTotal,
				ApportionedGst:    product.GstAmount.Mul(qty),
			})

			err = tx.Model(&Product{}).Where("id = ?", product.ID).
				Update("current_stock", product.CurrentStock-requested.Quantity).Error
			if err != nil {
				return err
			}
		}

		n, err := NextSequence(tx, store.ID, SequenceKindOrder)
		if err != nil {
			return err
		}

		order = Order{
			ID:              uuid.NewString(),
			StoreId:         store.ID,
			UserId:          userId,
			OrderNumber:     FormatOrderNumber(store.Code, n),
			AddressSnapshot: snapshot,
			MrpTotal:        mrpTotal,
			SellingSubtotal: subtotal,
			Amount:          subtotal,
			PaidOnline:      subtotal,
			Status:          OrderStatusConfirmed,
			CreatedBy:       actor,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for i := range lineItems {
			lineItems[i].OrderId = order.ID
		}
		if err := tx.Create(&lineItems).Error; err != nil {
			return err
		}
		if err := appendTimeline(tx, order.ID, OrderStatusInitiated, "admin order created", actor); err != nil {
			return err
		}
		return appendTimeline(tx, order.ID, OrderStatusConfirmed, "payment collected directly", actor)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// sortedByProductId copies and orders the requested lines so every checkout
// acquires product row locks in the same order. Opposite orderings from two
// concurrent checkouts would otherwise deadlock.
func sortedByProductId(products []CheckoutProduct) []CheckoutProduct {
	ordered := make([]CheckoutProduct, len(products))
	copy(ordered, products)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProductId < ordered[j].ProductId
	})
	return ordered
}

func gatewayCredentials(store *Store) gateway.Credentials {
	return gateway.Credentials{
		ClientId:     store.GatewayClientId,
		ClientSecret: store.GatewayClientSecret,
		BaseUrl:      store.GatewayBaseUrl,
		NotifyUrl:    store.GatewayNotifyUrl,
	}
}
