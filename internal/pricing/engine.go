package pricing

import (
	"time"

	"github.com/solstice-labs/commerce-core/internal/domain"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// Settings holds the global shipping configuration applied at pricing time.
type Settings struct {
	FreeShippingThreshold int64
	ShippingCost          int64
}

// Line pairs a cart line with its live catalog snapshot. Unit prices are
// resolved here from the snapshot, never taken from the client.
type Line struct {
	Product  domain.Product
	Variant  *domain.Variant
	BundleID string
	Quantity int
}

// PricedLine is one line with its authoritative unit price and total.
type PricedLine struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	BundleID  string `json:"bundle_id,omitempty"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

// Result is the authoritative priced order. All amounts are integer minor
// units; this domain has no fractional currency.
type Result struct {
	Lines         []PricedLine `json:"lines"`
	Subtotal      int64        `json:"subtotal"`
	Discount      int64        `json:"discount"`
	Shipping      int64        `json:"shipping"`
	GrandTotal    int64        `json:"grand_total"`
	CouponApplied bool         `json:"coupon_applied"`
}

// Engine recomputes authoritative order totals from catalog state, bundle
// rules, an optional coupon, and the shipping settings.
type Engine struct {
	settings Settings
}

// NewEngine creates a pricing engine with the given shipping settings.
func NewEngine(settings Settings) *Engine {
	return &Engine{settings: settings}
}

// Price computes the priced order for the given lines. An inapplicable or
// unknown coupon never fails the computation; it degrades to no discount.
func (e *Engine) Price(lines []Line, bundles map[string]domain.Bundle, coupon *domain.Coupon, now time.Time) (*Result, error) {
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("cannot price an empty cart")
	}

	result := &Result{Lines: make([]PricedLine, 0, len(lines))}

	// Resolve authoritative unit prices and group bundle members.
	bundleLines := make(map[string][]PricedLine)
	var standaloneTotal int64

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, apperrors.InvalidInput("line quantity must be greater than 0")
		}

		priced := PricedLine{
			ProductID: line.Product.ID,
			BundleID:  line.BundleID,
			Name:      line.Product.Name,
			SKU:       line.Product.SKU,
			UnitPrice: resolveUnitPrice(line.Product, line.Variant),
			Quantity:  line.Quantity,
		}
		if line.Variant != nil {
			priced.VariantID = line.Variant.ID
			if line.Variant.SKU != "" {
				priced.SKU = line.Variant.SKU
			}
		}
		priced.LineTotal = priced.UnitPrice * int64(line.Quantity)

		result.Lines = append(result.Lines, priced)

		if line.BundleID != "" {
			bundleLines[line.BundleID] = append(bundleLines[line.BundleID], priced)
		} else {
			standaloneTotal += priced.LineTotal
		}
	}

	// A bundle's contribution is computed once from its members' summed line
	// price, never summed twice.
	bundleTotal := int64(0)
	for bundleID, members := range bundleLines {
		bundle, ok := bundles[bundleID]
		if !ok {
			// Unknown bundle id: members price as standalone lines.
			for _, m := range members {
				bundleTotal += m.LineTotal
			}
			continue
		}
		bundleTotal += bundlePrice(bundle, members)
	}

	result.Subtotal = standaloneTotal + bundleTotal

	// Coupon is applied once to the combined subtotal.
	freeShipping := false
	if coupon.Applicable(result.Subtotal, now) {
		switch coupon.DiscountType {
		case domain.CouponTypePercentage:
			d := result.Subtotal * coupon.DiscountValue / 100
			if coupon.MaxDiscountAmount != nil && d > *coupon.MaxDiscountAmount {
				d = *coupon.MaxDiscountAmount
			}
			result.Discount = d
			result.CouponApplied = true
		case domain.CouponTypeFixed:
			result.Discount = coupon.DiscountValue
			result.CouponApplied = true
		case domain.CouponTypeFreeShipping:
			freeShipping = true
			result.CouponApplied = true
		}
	}

	if result.Subtotal >= e.settings.FreeShippingThreshold || freeShipping {
		result.Shipping = 0
	} else {
		result.Shipping = e.settings.ShippingCost
	}

	result.GrandTotal = result.Subtotal + result.Shipping - result.Discount
	if result.GrandTotal < 0 {
		result.GrandTotal = 0
	}

	return result, nil
}

// resolveUnitPrice derives the authoritative unit price for a line:
// variant absolute price, then base price plus variant adjustment, then
// product discount price, then base price.
func resolveUnitPrice(product domain.Product, variant *domain.Variant) int64 {
	if variant != nil {
		if variant.AbsolutePrice != nil {
			return *variant.AbsolutePrice
		}
		if variant.PriceAdjustment != 0 {
			return product.BasePrice + variant.PriceAdjustment
		}
	}
	if product.DiscountPrice != nil {
		return *product.DiscountPrice
	}
	return product.BasePrice
}

// bundlePrice computes a bundle group's contribution to the subtotal. The
// result is never negative, even when a fixed discount exceeds the group
// subtotal.
func bundlePrice(bundle domain.Bundle, members []PricedLine) int64 {
	var groupSubtotal int64
	bundleQty := 0
	for _, m := range members {
		groupSubtotal += m.LineTotal
		if bundleQty == 0 || m.Quantity < bundleQty {
			bundleQty = m.Quantity
		}
	}

	var price int64
	switch bundle.PriceType {
	case domain.BundlePriceFixed:
		// The fixed price covers one unit of every member. Units beyond the
		// bundle quantity are charged at their resolved unit price.
		price = bundle.PriceValue * int64(bundleQty)
		for _, m := range members {
			if extra := m.Quantity - bundleQty; extra > 0 {
				price += m.UnitPrice * int64(extra)
			}
		}
	case domain.BundlePricePercentageDiscount:
		price = groupSubtotal * (100 - bundle.PriceValue) / 100
	case domain.BundlePriceFixedDiscount:
		price = groupSubtotal - bundle.PriceValue*int64(bundleQty)
	default:
		price = groupSubtotal
	}

	if price < 0 {
		return 0
	}
	return price
}
