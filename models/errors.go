package models

import "errors"

// Checkout / stock errors. Recoverable by the caller.
var (
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOutOfStock         = errors.New("out of stock")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrMovementNotFound   = errors.New("inventory movement not found")
)

// Coupon errors. Recoverable: the caller may retry without the coupon.
var (
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCouponNotEligible   = errors.New("coupon not eligible for this user")
	ErrCouponMinimumNotMet = errors.New("order amount below coupon minimum")
	ErrCouponNotApplicable = errors.New("coupon not applicable to these items")
	ErrCouponUsageLimit    = errors.New("coupon usage limit exceeded")
	ErrCouponPerUserLimit  = errors.New("coupon per-user limit exceeded")
)

// Order / reconciliation errors.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// IsCouponError reports whether err belongs to the coupon failure taxonomy,
// so the checkout surface can return a specific reason without degrading the
// failure to "no discount".
func IsCouponError(err error) bool {
	switch {
	case errors.Is(err, ErrCouponNotFound),
		errors.Is(err, ErrCouponNotEligible),
		errors.Is(err, ErrCouponMinimumNotMet),
		errors.Is(err, ErrCouponNotApplicable),
		errors.Is(err, ErrCouponUsageLimit),
		errors.Is(err, ErrCouponPerUserLimit):
		return true
	}
	return false
}
