package domain

import "time"

// Product is the catalog snapshot needed for authoritative pricing.
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	BasePrice     int64  `json:"base_price"`
	DiscountPrice *int64 `json:"discount_price,omitempty"`
}

// Variant is a product variant with an optional absolute price override or
// a relative adjustment on the product's base price.
type Variant struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	SKU             string `json:"sku"`
	AbsolutePrice   *int64 `json:"absolute_price,omitempty"`
	PriceAdjustment int64  `json:"price_adjustment"`
}

// Bundle price type constants.
const (
	BundlePriceFixed              = "fixed"
	BundlePricePercentageDiscount = "percentage_discount"
	BundlePriceFixedDiscount      = "fixed_discount"
)

// Bundle is a set of cart lines sold together under one derived price rule.
type Bundle struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceType  string `json:"price_type"`
	PriceValue int64  `json:"price_value"`
}

// Coupon discount type constants.
const (
	CouponTypePercentage   = "percentage"
	CouponTypeFixed        = "fixed"
	CouponTypeFreeShipping = "free_shipping"
)

// Coupon is a discount code. Applicability is checked at pricing time; an
// inapplicable coupon degrades silently to no discount.
type Coupon struct {
	Code              string     `json:"code"`
	DiscountType      string     `json:"discount_type"`
	DiscountValue     int64      `json:"discount_value"`
	MinOrderValue     int64      `json:"min_order_value"`
	MaxDiscountAmount *int64     `json:"max_discount_amount,omitempty"`
	UsageLimit        *int       `json:"usage_limit,omitempty"`
	TimesUsed         int        `json:"times_used"`
	Active            bool       `json:"active"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
}

// Applicable reports whether the coupon may discount an order with the given
// subtotal at the given time.
func (c *Coupon) Applicable(subtotal int64, now time.Time) bool {
	if c == nil || !c.Active {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return false
	}
	return subtotal >= c.MinOrderValue
}
