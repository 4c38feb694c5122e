package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the backend order lifecycle, distinct from the session stage.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRejected   OrderStatus = "rejected"
)

// statusNext lists the legal forward transitions. Cancelled and rejected are
// reachable from any non-terminal status.
var statusNext = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusConfirmed,
	OrderStatusConfirmed:  OrderStatusPreparing,
	OrderStatusPreparing:  OrderStatusReady,
	OrderStatusReady:      OrderStatusDispatched,
	OrderStatusDispatched: OrderStatusDelivered,
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRejected
}

// CanTransition reports whether moving from s to next is legal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled || next == OrderStatusRejected {
		return true
	}
	return statusNext[s] == next
}

// DeliveryMethod is how the customer receives the order.
type DeliveryMethod string

const (
	DeliveryMethodDelivery DeliveryMethod = "delivery"
	DeliveryMethodPickup   DeliveryMethod = "pickup"
	DeliveryMethodDineIn   DeliveryMethod = "dinein"
)

// WireType maps the delivery method to the backend order payload value.
func (m DeliveryMethod) WireType() string {
	if m == DeliveryMethodDineIn {
		return "on_site"
	}
	return string(m)
}

// PaymentMethod enumerates the methods the backend accepts.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentYape         PaymentMethod = "yape"
	PaymentPlin         PaymentMethod = "plin"
	PaymentMercadoPago  PaymentMethod = "mercado_pago"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentCard, PaymentYape, PaymentPlin, PaymentMercadoPago, PaymentBankTransfer:
		return PaymentMethod(s), true
	}
	return "", false
}

// Customer is the order recipient.
type Customer struct {
	Name    string  `json:"name"`
	Phone   UserRef `json:"phone"`
	Address string  `json:"address,omitempty"`
}

// Order is the pending or confirmed order built during checkout. Once
// confirmed, the cart snapshot is immutable.
type Order struct {
	ID               OrderID         `json:"id,omitempty"`
	Cart             Cart            `json:"cart"`
	Status           OrderStatus     `json:"status"`
	DeliveryMethod   DeliveryMethod  `json:"deliveryMethod"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod,omitempty"`
	Customer         Customer        `json:"customer"`
	DeliveryZone     *Zone           `json:"deliveryZone,omitempty"`
	DeliveryDistance Distance        `json:"deliveryDistanceKm,omitempty"`
	Subtotal         Money           `json:"subtotal"`
	TaxRate          decimal.Decimal `json:"taxRate"`
	TaxAmount        Money           `json:"taxAmount"`
	DeliveryFee      Money           `json:"deliveryFee"`
	FreeDelivery     bool            `json:"freeDelivery,omitempty"`
	Discount         Money           `json:"discount"`
	Total            Money           `json:"total"`
	CreatedAt        time.Time       `json:"createdAt"`
	ConfirmedAt      *time.Time      `json:"confirmedAt,omitempty"`
	EstimatedReadyAt *time.Time      `json:"estimatedReadyAt,omitempty"`
}

// Recalculate derives subtotal, tax and total from the cart snapshot and the
// already-set delivery fee and discount. total = subtotal + tax + fee − discount.
func (o *Order) Recalculate() {
	o.Subtotal = o.Cart.Subtotal()
	o.TaxAmount = o.Subtotal.Mul(o.TaxRate).Rounded()
	o.Total = o.Subtotal.Add(o.TaxAmount).Add(o.DeliveryFee).Sub(o.Discount)
}

// Confirm freezes the order at the current moment.
func (o *Order) Confirm(now time.Time) {
	o.Status = OrderStatusConfirmed
	t := now
	o.ConfirmedAt = &t
}
