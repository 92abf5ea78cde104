package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Order status constants.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Payment status constants tracked on the order.
const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// Order is the durable record of an attempted purchase. It is created in
// pending/pending by the checkout flow and mutated only by webhook
// reconciliation afterwards. Orders are never deleted, only terminal-stated.
type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"order_number"`
	UserID          string      `json:"user_id"`
	Status          string      `json:"status"`
	PaymentStatus   string      `json:"payment_status"`
	Items           []OrderItem `json:"items"`
	SubtotalAmount  int64       `json:"subtotal_amount"`
	DiscountAmount  int64       `json:"discount_amount"`
	ShippingAmount  int64       `json:"shipping_amount"`
	TotalAmount     int64       `json:"total_amount"`
	Currency        string      `json:"currency"`
	CouponCode      string      `json:"coupon_code,omitempty"`
	ShippingAddress *Address    `json:"shipping_address,omitempty"`
	CancelledReason string      `json:"cancelled_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is a single purchased line, created atomically with its order.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	BundleID  string `json:"bundle_id,omitempty"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// Address represents a shipping address.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// AllowedTransitions defines which order status transitions are valid.
// pending is the only non-terminal state.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
		OrderStatusPaid:      {},
		OrderStatusCancelled: {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// ReservationItems returns the reservation set recorded on this order's
// items, i.e. exactly the quantities a successful reserve consumed.
func (o *Order) ReservationItems() []ReservationItem {
	items := make([]ReservationItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = ReservationItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}
	}
	return items
}

// ReservationItem identifies a quantity held against available stock.
type ReservationItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// NewOrderNumber generates a human-readable order number. Uniqueness is
// enforced by the orders table; the random suffix keeps collisions across
// the same millisecond negligible.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.UTC().Format("20060102"), rand.IntN(10000))
}

// Validate checks that an address carries the minimum required fields.
func (a *Address) Validate() error {
	if a == nil {
		return fmt.Errorf("shipping address is required")
	}
	if a.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if a.AddressLine == "" {
		return fmt.Errorf("address_line is required")
	}
	if a.City == "" {
		return fmt.Errorf("city is required")
	}
	if a.PostalCode == "" {
		return fmt.Errorf("postal_code is required")
	}
	if a.Country == "" {
		return fmt.Errorf("country is required")
	}
	return nil
}
