package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-labs/commerce-core/internal/domain"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }

func newTestEngine() *Engine {
	return NewEngine(Settings{FreeShippingThreshold: 499, ShippingCost: 100})
}

func productLine(id string, basePrice int64, qty int) Line {
	return Line{
		Product:  domain.Product{ID: id, Name: "Product " + id, SKU: "SKU-" + id, BasePrice: basePrice},
		Quantity: qty,
	}
}

func TestPrice_SingleLineAboveFreeShippingThreshold(t *testing.T) {
	// Cart of qty 2 at unit 500: subtotal 1000 >= threshold 499, shipping 0.
	engine := newTestEngine()

	result, err := engine.Price([]Line{productLine("prod-a", 500, 2)}, nil, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), result.Subtotal)
	assert.Equal(t, int64(0), result.Discount)
	assert.Equal(t, int64(0), result.Shipping)
	assert.Equal(t, int64(1000), result.GrandTotal)
	assert.False(t, result.CouponApplied)
}

func TestPrice_PercentageCouponCappedByMaxDiscount(t *testing.T) {
	// 10% of 1000 is 100, capped at 50; total 950.
	engine := newTestEngine()
	coupon := &domain.Coupon{
		Code:              "SAVE10",
		DiscountType:      domain.CouponTypePercentage,
		DiscountValue:     10,
		MaxDiscountAmount: int64Ptr(50),
		Active:            true,
	}

	result, err := engine.Price([]Line{productLine("prod-a", 500, 2)}, nil, coupon, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), result.Subtotal)
	assert.Equal(t, int64(50), result.Discount)
	assert.Equal(t, int64(950), result.GrandTotal)
	assert.True(t, result.CouponApplied)
}

func TestPrice_BelowThresholdChargesShipping(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Price([]Line{productLine("prod-a", 100, 2)}, nil, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(200), result.Subtotal)
	assert.Equal(t, int64(100), result.Shipping)
	assert.Equal(t, int64(300), result.GrandTotal)
}

func TestPrice_FreeShippingCoupon(t *testing.T) {
	engine := newTestEngine()
	coupon := &domain.Coupon{
		Code:         "SHIPFREE",
		DiscountType: domain.CouponTypeFreeShipping,
		Active:       true,
	}

	result, err := engine.Price([]Line{productLine("prod-a", 100, 2)}, nil, coupon, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Shipping)
	assert.Equal(t, int64(0), result.Discount)
	assert.Equal(t, int64(200), result.GrandTotal)
	assert.True(t, result.CouponApplied)
}

func TestPrice_InvalidCouponDegradesSilently(t *testing.T) {
	engine := newTestEngine()
	lines := []Line{productLine("prod-a", 500, 2)}

	baseline, err := engine.Price(lines, nil, nil, testNow)
	require.NoError(t, err)

	inapplicable := []*domain.Coupon{
		nil,
		{Code: "INACTIVE", DiscountType: domain.CouponTypePercentage, DiscountValue: 10, Active: false},
		{Code: "EXPIRED", DiscountType: domain.CouponTypePercentage, DiscountValue: 10, Active: true,
			ValidUntil: func() *time.Time { t := testNow.Add(-time.Hour); return &t }()},
		{Code: "UNDERMIN", DiscountType: domain.CouponTypeFixed, DiscountValue: 100, Active: true, MinOrderValue: 5000},
		{Code: "EXHAUSTED", DiscountType: domain.CouponTypeFixed, DiscountValue: 100, Active: true,
			UsageLimit: func() *int { n := 1; return &n }(), TimesUsed: 1},
	}

	for _, coupon := range inapplicable {
		result, err := engine.Price(lines, nil, coupon, testNow)
		require.NoError(t, err)
		assert.Equal(t, baseline.GrandTotal, result.GrandTotal)
		assert.Equal(t, int64(0), result.Discount)
		assert.False(t, result.CouponApplied)
	}
}

func TestPrice_CouponDeterministic(t *testing.T) {
	engine := newTestEngine()
	coupon := &domain.Coupon{
		Code:          "FIXED100",
		DiscountType:  domain.CouponTypeFixed,
		DiscountValue: 100,
		Active:        true,
	}
	lines := []Line{productLine("prod-a", 500, 2)}

	first, err := engine.Price(lines, nil, coupon, testNow)
	require.NoError(t, err)
	second, err := engine.Price(lines, nil, coupon, testNow)
	require.NoError(t, err)

	assert.Equal(t, first.Discount, second.Discount)
	assert.Equal(t, first.GrandTotal, second.GrandTotal)
}

func TestPrice_DiscountExceedingSubtotalFloorsAtZero(t *testing.T) {
	engine := newTestEngine()
	coupon := &domain.Coupon{
		Code:          "HUGE",
		DiscountType:  domain.CouponTypeFixed,
		DiscountValue: 10000,
		Active:        true,
	}

	result, err := engine.Price([]Line{productLine("prod-a", 500, 2)}, nil, coupon, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.GrandTotal)
}

func TestPrice_UnitPriceResolution(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name     string
		line     Line
		expected int64
	}{
		{
			"variant absolute price wins",
			Line{
				Product:  domain.Product{ID: "p", BasePrice: 500, DiscountPrice: int64Ptr(400)},
				Variant:  &domain.Variant{ID: "v", AbsolutePrice: int64Ptr(450), PriceAdjustment: 25},
				Quantity: 1,
			},
			450,
		},
		{
			"base price plus variant adjustment",
			Line{
				Product:  domain.Product{ID: "p", BasePrice: 500},
				Variant:  &domain.Variant{ID: "v", PriceAdjustment: 25},
				Quantity: 1,
			},
			525,
		},
		{
			"discount price over base",
			Line{
				Product:  domain.Product{ID: "p", BasePrice: 500, DiscountPrice: int64Ptr(400)},
				Quantity: 1,
			},
			400,
		},
		{
			"base price fallback",
			Line{
				Product:  domain.Product{ID: "p", BasePrice: 500},
				Quantity: 1,
			},
			500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Price([]Line{tt.line}, nil, nil, testNow)
			require.NoError(t, err)
			require.Len(t, result.Lines, 1)
			assert.Equal(t, tt.expected, result.Lines[0].UnitPrice)
		})
	}
}

func TestPrice_BundleFixed(t *testing.T) {
	engine := newTestEngine()
	bundles := map[string]domain.Bundle{
		"bundle-1": {ID: "bundle-1", PriceType: domain.BundlePriceFixed, PriceValue: 800},
	}
	lines := []Line{
		{Product: domain.Product{ID: "p1", BasePrice: 500}, BundleID: "bundle-1", Quantity: 1},
		{Product: domain.Product{ID: "p2", BasePrice: 600}, BundleID: "bundle-1", Quantity: 1},
	}

	result, err := engine.Price(lines, bundles, nil, testNow)
	require.NoError(t, err)

	// Fixed bundle price replaces the 1100 member subtotal.
	assert.Equal(t, int64(800), result.Subtotal)
}

func TestPrice_BundleFixedChargesRemainderUnits(t *testing.T) {
	engine := newTestEngine()
	bundles := map[string]domain.Bundle{
		"bundle-1": {ID: "bundle-1", PriceType: domain.BundlePriceFixed, PriceValue: 800},
	}
	lines := []Line{
		{Product: domain.Product{ID: "p1", BasePrice: 500}, BundleID: "bundle-1", Quantity: 3},
		{Product: domain.Product{ID: "p2", BasePrice: 600}, BundleID: "bundle-1", Quantity: 1},
	}

	result, err := engine.Price(lines, bundles, nil, testNow)
	require.NoError(t, err)

	// One bundle (min quantity 1) at 800, plus two leftover p1 units at 500.
	assert.Equal(t, int64(1800), result.Subtotal)
}

func TestPrice_BundlePercentageDiscount(t *testing.T) {
	engine := newTestEngine()
	bundles := map[string]domain.Bundle{
		"bundle-1": {ID: "bundle-1", PriceType: domain.BundlePricePercentageDiscount, PriceValue: 20},
	}
	lines := []Line{
		{Product: domain.Product{ID: "p1", BasePrice: 500}, BundleID: "bundle-1", Quantity: 1},
		{Product: domain.Product{ID: "p2", BasePrice: 500}, BundleID: "bundle-1", Quantity: 1},
	}

	result, err := engine.Price(lines, bundles, nil, testNow)
	require.NoError(t, err)

	// 1000 at 20% off.
	assert.Equal(t, int64(800), result.Subtotal)
}

func TestPrice_BundleFixedDiscountNeverNegative(t *testing.T) {
	engine := newTestEngine()
	bundles := map[string]domain.Bundle{
		"bundle-1": {ID: "bundle-1", PriceType: domain.BundlePriceFixedDiscount, PriceValue: 5000},
	}
	lines := []Line{
		{Product: domain.Product{ID: "p1", BasePrice: 500}, BundleID: "bundle-1", Quantity: 1},
	}

	result, err := engine.Price(lines, bundles, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Subtotal)
	assert.GreaterOrEqual(t, result.GrandTotal, int64(0))
}

func TestPrice_BundleFixedDiscountAppliedOnce(t *testing.T) {
	engine := newTestEngine()
	bundles := map[string]domain.Bundle{
		"bundle-1": {ID: "bundle-1", PriceType: domain.BundlePriceFixedDiscount, PriceValue: 100},
	}
	lines := []Line{
		{Product: domain.Product{ID: "p1", BasePrice: 500}, BundleID: "bundle-1", Quantity: 2},
		{Product: domain.Product{ID: "p2", BasePrice: 300}, BundleID: "bundle-1", Quantity: 2},
	}

	result, err := engine.Price(lines, bundles, nil, testNow)
	require.NoError(t, err)

	// Group subtotal 1600, two bundle sets, 100 off per set.
	assert.Equal(t, int64(1400), result.Subtotal)
}

func TestPrice_BundleMixedWithStandaloneLines(t *testing.T) {
	engine := newTestEngine()
	bundles := map[string]domain.Bundle{
		"bundle-1": {ID: "bundle-1", PriceType: domain.BundlePriceFixed, PriceValue: 700},
	}
	lines := []Line{
		{Product: domain.Product{ID: "p1", BasePrice: 500}, BundleID: "bundle-1", Quantity: 1},
		{Product: domain.Product{ID: "p2", BasePrice: 400}, BundleID: "bundle-1", Quantity: 1},
		productLine("p3", 250, 2),
	}

	result, err := engine.Price(lines, bundles, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(700+500), result.Subtotal)
}

func TestPrice_UnknownBundleIDPricesMembersStandalone(t *testing.T) {
	engine := newTestEngine()
	lines := []Line{
		{Product: domain.Product{ID: "p1", BasePrice: 500}, BundleID: "missing", Quantity: 1},
	}

	result, err := engine.Price(lines, nil, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(500), result.Subtotal)
}

func TestPrice_EmptyCartRejected(t *testing.T) {
	engine := newTestEngine()
	_, err := engine.Price(nil, nil, nil, testNow)
	require.Error(t, err)
}

func TestPrice_NonPositiveQuantityRejected(t *testing.T) {
	engine := newTestEngine()
	_, err := engine.Price([]Line{productLine("p1", 500, 0)}, nil, nil, testNow)
	require.Error(t, err)
}
