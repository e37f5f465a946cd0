package models

import "errors"

type OrderStatus string

const (
	OrderStatusInitiated       OrderStatus = "INITIATED"
	OrderStatusPlaced          OrderStatus = "PLACED"
	OrderStatusConfirmed       OrderStatus = "CONFIRMED"
	OrderStatusPacked          OrderStatus = "PACKED"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusFailed          OrderStatus = "FAILED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusUnfulfilled     OrderStatus = "UNFULFILLED"
	OrderStatusReturnRequested OrderStatus = "RETURN_REQUESTED"
	OrderStatusReturned        OrderStatus = "RETURNED"
	OrderStatusRefunded        OrderStatus = "REFUNDED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusInitiated, OrderStatusPlaced, OrderStatusConfirmed,
		OrderStatusPacked, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusFailed, OrderStatusCancelled, OrderStatusUnfulfilled,
		OrderStatusReturnRequested, OrderStatusReturned, OrderStatusRefunded:
		return true
	}
	return false
}

// TransitionActor identifies who is invoking a status transition.
type TransitionActor string

const (
	ActorSystem TransitionActor = "SYSTEM" // reconciliation engine (webhook / status poll)
	ActorAdmin  TransitionActor = "ADMIN"  // store admin fulfillment actions
	ActorBatch  TransitionActor = "BATCH"  // external sweeper jobs
)

// orderTransitions is the closed transition table. Transitions are
// one-directional; no state is revisited except via the return branch.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusInitiated:       {OrderStatusPlaced, OrderStatusFailed, OrderStatusCancelled, OrderStatusUnfulfilled},
	OrderStatusPlaced:          {OrderStatusConfirmed, OrderStatusUnfulfilled, OrderStatusReturnRequested},
	OrderStatusConfirmed:       {OrderStatusPacked, OrderStatusReturnRequested},
	OrderStatusPacked:          {OrderStatusShipped, OrderStatusReturnRequested},
	OrderStatusShipped:         {OrderStatusDelivered, OrderStatusReturnRequested},
	OrderStatusReturnRequested: {OrderStatusReturned},
	OrderStatusReturned:        {OrderStatusRefunded},
	// DELIVERED, FAILED, CANCELLED, UNFULFILLED, REFUNDED are terminal.
}

// transitionActors restricts who may move an order INTO a given status.
var transitionActors = map[OrderStatus][]TransitionActor{
	OrderStatusPlaced:          {ActorSystem},
	OrderStatusFailed:          {ActorSystem},
	OrderStatusCancelled:       {ActorSystem, ActorAdmin},
	OrderStatusUnfulfilled:     {ActorBatch},
	OrderStatusConfirmed:       {ActorAdmin},
	OrderStatusPacked:          {ActorAdmin},
	OrderStatusShipped:         {ActorAdmin},
	OrderStatusDelivered:       {ActorAdmin},
	OrderStatusReturnRequested: {ActorAdmin},
	OrderStatusReturned:        {ActorAdmin},
	OrderStatusRefunded:        {ActorAdmin},
}

// CanTransition reports whether from -> to is present in the transition table.
func CanTransition(from OrderStatus, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks both the edge and the invoker.
func ValidateTransition(from OrderStatus, to OrderStatus, by TransitionActor) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	for _, a := range transitionActors[to] {
		if a == by {
			return nil
		}
	}
	return errors.New("actor not permitted for this transition")
}

// IsTerminalOrderStatus reports whether no outgoing transition exists.
func IsTerminalOrderStatus(s OrderStatus) bool {
	return len(orderTransitions[s]) == 0
}

// completedOrderStatuses is the terminal-success set used by
// first-order-only coupon eligibility.
var completedOrderStatuses = []OrderStatus{OrderStatusDelivered}

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// IsTerminal reports whether the payment status is write-once final.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

type InventoryMovementType string

const (
	MovementPurchase       InventoryMovementType = "PURCHASE"
	MovementSell           InventoryMovementType = "SELL"
	MovementPurchaseReturn InventoryMovementType = "PURCHASE_RETURN"
	MovementSaleReturn     InventoryMovementType = "SALE_RETURN"
)

func (t InventoryMovementType) Valid() bool {
	switch t {
	case MovementPurchase, MovementSell, MovementPurchaseReturn, MovementSaleReturn:
		return true
	}
	return false
}

type CouponTargetType string

const (
	CouponTargetOrder    CouponTargetType = "ORDER"
	CouponTargetProduct  CouponTargetType = "PRODUCT"
	CouponTargetCategory CouponTargetType = "CATEGORY"
	CouponTargetTag      CouponTargetType = "TAG"
	CouponTargetShipping CouponTargetType = "SHIPPING"
)

func (t CouponTargetType) Valid() bool {
	switch t {
	case CouponTargetOrder, CouponTargetProduct, CouponTargetCategory, CouponTargetTag, CouponTargetShipping:
		return true
	}
	return false
}

type CouponDiscountType string

const (
	DiscountFlat       CouponDiscountType = "FLAT"
	DiscountPercentage CouponDiscountType = "PERCENTAGE"
)

func (t CouponDiscountType) Valid() bool {
	return t == DiscountFlat || t == DiscountPercentage
}

type SequenceKind string

const (
	SequenceKindOrder   SequenceKind = "order"
	SequenceKindProduct SequenceKind = "product"
)
