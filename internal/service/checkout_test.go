package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/internal/gateway"
	"github.com/solstice-labs/commerce-core/internal/pricing"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

type checkoutDeps struct {
	orders    *mockOrderRepository
	inventory *mockInventoryRepository
	payments  *mockPaymentRepository
	catalog   *mockCatalogRepository
	carts     *mockCartRepository
	gateway   *mockGateway
	producer  *mockPublisher
}

func newCheckoutService() (*CheckoutService, *checkoutDeps) {
	deps := &checkoutDeps{
		orders:    new(mockOrderRepository),
		inventory: new(mockInventoryRepository),
		payments:  new(mockPaymentRepository),
		catalog:   new(mockCatalogRepository),
		carts:     new(mockCartRepository),
		gateway:   new(mockGateway),
		producer:  new(mockPublisher),
	}
	engine := pricing.NewEngine(pricing.Settings{FreeShippingThreshold: 499, ShippingCost: 100})
	svc := NewCheckoutService(
		deps.orders, deps.inventory, deps.payments, deps.catalog, deps.carts,
		deps.gateway, deps.producer, engine, newTestLogger(),
	)
	return svc, deps
}

func checkoutAddress() *domain.Address {
	return &domain.Address{
		FullName:    "John Doe",
		AddressLine: "123 Main St",
		City:        "Springfield",
		PostalCode:  "62704",
		Country:     "US",
	}
}

func checkoutInput() *CheckoutInput {
	return &CheckoutInput{
		ShippingAddress: checkoutAddress(),
		Currency:        "USD",
	}
}

func singleItemCart() *domain.Cart {
	return &domain.Cart{
		UserID: "user-123",
		Items: []domain.CartLine{
			{ProductID: "prod-1", Quantity: 2},
		},
	}
}

func TestCheckout_Success(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(singleItemCart(), nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	deps.inventory.On("Reserve", ctx, []domain.ReservationItem{
		{ProductID: "prod-1", Quantity: 2},
	}).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)
	deps.gateway.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentInput")).Return(&gateway.Intent{
		ID: "gw_order_1", Amount: 1000, Currency: "USD", Status: "created",
	}, nil)
	deps.payments.On("Create", ctx, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)
	deps.producer.On("PublishOrderCreated", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	require.NoError(t, err)
	assert.NotEmpty(t, result.OrderID)
	assert.NotEmpty(t, result.OrderNumber)
	assert.Equal(t, "gw_order_1", result.GatewayOrderID)
	// 2 x 500 subtotal, over the free shipping threshold.
	assert.Equal(t, int64(1000), result.Amount)
	assert.Equal(t, "USD", result.Currency)

	deps.orders.AssertExpectations(t)
	deps.inventory.AssertExpectations(t)
	deps.payments.AssertExpectations(t)
	deps.gateway.AssertExpectations(t)
}

func TestCheckout_RecomputesPricesServerSide(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	// The cart carries no prices at all; the order amount must come from
	// the catalog snapshot.
	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(&domain.Cart{
		UserID: "user-123",
		Items: []domain.CartLine{
			{ProductID: "prod-1", VariantID: "var-1", Quantity: 1},
		},
	}, nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	absolute := int64(750)
	deps.catalog.On("GetVariant", ctx, "var-1").Return(&domain.Variant{
		ID: "var-1", ProductID: "prod-1", SKU: "WDG-001-L", AbsolutePrice: &absolute,
	}, nil)
	deps.inventory.On("Reserve", ctx, mock.Anything).Return(nil)

	var created *domain.Order
	deps.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Order)
	}).Return(nil)
	deps.gateway.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentInput")).Return(&gateway.Intent{ID: "gw_order_1"}, nil)
	deps.payments.On("Create", ctx, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)
	deps.producer.On("PublishOrderCreated", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	require.NoError(t, err)
	require.NotNil(t, created)
	// Variant absolute price wins, plus shipping below the threshold... the
	// subtotal 750 exceeds 499 so shipping is free.
	assert.Equal(t, int64(750), created.SubtotalAmount)
	assert.Equal(t, int64(0), created.ShippingAmount)
	assert.Equal(t, int64(750), result.Amount)
}

func TestCheckout_CouponApplied(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	maxDiscount := int64(50)
	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(singleItemCart(), nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	deps.catalog.On("GetCoupon", ctx, "SAVE10").Return(&domain.Coupon{
		Code:              "SAVE10",
		DiscountType:      domain.CouponTypePercentage,
		DiscountValue:     10,
		MaxDiscountAmount: &maxDiscount,
		Active:            true,
	}, nil)
	deps.catalog.On("IncrementCouponUsage", ctx, "SAVE10").Return(nil)
	deps.inventory.On("Reserve", ctx, mock.Anything).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)
	deps.gateway.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentInput")).Return(&gateway.Intent{ID: "gw_order_1"}, nil)
	deps.payments.On("Create", ctx, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)
	deps.producer.On("PublishOrderCreated", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

	input := checkoutInput()
	input.CouponCode = "SAVE10"

	result, err := svc.Checkout(ctx, "user-123", input)

	require.NoError(t, err)
	// 10% of 1000 capped at 50.
	assert.Equal(t, int64(950), result.Amount)
	deps.catalog.AssertCalled(t, "IncrementCouponUsage", ctx, "SAVE10")
}

func TestCheckout_UnknownCouponDegradesSilently(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(singleItemCart(), nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	deps.catalog.On("GetCoupon", ctx, "GHOST").Return(nil, apperrors.NotFound("coupon", "GHOST"))
	deps.inventory.On("Reserve", ctx, mock.Anything).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)
	deps.gateway.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentInput")).Return(&gateway.Intent{ID: "gw_order_1"}, nil)
	deps.payments.On("Create", ctx, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)
	deps.producer.On("PublishOrderCreated", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

	input := checkoutInput()
	input.CouponCode = "GHOST"

	result, err := svc.Checkout(ctx, "user-123", input)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.Amount)
	deps.catalog.AssertNotCalled(t, "IncrementCouponUsage", ctx, "GHOST")
}

func TestCheckout_RateLimited(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(5, nil)

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	deps.carts.AssertNotCalled(t, "Get", ctx, "user-123")
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(nil, apperrors.NotFound("cart", "user-123"))

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckout_MissingAddress(t *testing.T) {
	svc, _ := newCheckoutService()

	result, err := svc.Checkout(context.Background(), "user-123", &CheckoutInput{Currency: "USD"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckout_StockUnavailable(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(singleItemCart(), nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	deps.inventory.On("Reserve", ctx, mock.Anything).Return(apperrors.StockUnavailable())

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrStockUnavailable)
	// Nothing was reserved, so nothing is released and no order is written.
	deps.inventory.AssertNotCalled(t, "Release", ctx, mock.Anything)
	deps.orders.AssertNotCalled(t, "Create", ctx, mock.Anything)
}

func TestCheckout_OrderPersistFailureReleasesReservation(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	reservation := []domain.ReservationItem{{ProductID: "prod-1", Quantity: 2}}

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(singleItemCart(), nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	deps.inventory.On("Reserve", ctx, reservation).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(assert.AnError)
	deps.inventory.On("Release", ctx, reservation).Return(nil)

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	assert.Nil(t, result)
	require.Error(t, err)
	deps.inventory.AssertCalled(t, "Release", ctx, reservation)
	deps.gateway.AssertNotCalled(t, "CreateIntent", ctx, mock.Anything)
}

func TestCheckout_GatewayFailureReleasesReservationAndLeavesOrderPending(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	reservation := []domain.ReservationItem{{ProductID: "prod-1", Quantity: 2}}

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(singleItemCart(), nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	deps.inventory.On("Reserve", ctx, reservation).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)
	deps.gateway.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentInput")).
		Return(nil, apperrors.GatewayUnavailable(assert.AnError))
	deps.inventory.On("Release", ctx, reservation).Return(nil)

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	// The reservation is released but the order row is never touched; it
	// stays pending for reconciliation or expiry.
	deps.inventory.AssertCalled(t, "Release", ctx, reservation)
	deps.orders.AssertNotCalled(t, "UpdateStatus", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	deps.payments.AssertNotCalled(t, "Create", ctx, mock.Anything)
}

func TestCheckout_EventPublishFailureDoesNotFailCheckout(t *testing.T) {
	svc, deps := newCheckoutService()
	ctx := context.Background()

	deps.orders.On("CountRecentPending", ctx, "user-123", mock.AnythingOfType("time.Time")).Return(0, nil)
	deps.carts.On("Get", ctx, "user-123").Return(singleItemCart(), nil)
	deps.catalog.On("GetProduct", ctx, "prod-1").Return(&domain.Product{
		ID: "prod-1", Name: "Widget", SKU: "WDG-001", BasePrice: 500,
	}, nil)
	deps.inventory.On("Reserve", ctx, mock.Anything).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)
	deps.gateway.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentInput")).Return(&gateway.Intent{ID: "gw_order_1"}, nil)
	deps.payments.On("Create", ctx, mock.AnythingOfType("*domain.PaymentTransaction")).Return(nil)
	deps.producer.On("PublishOrderCreated", ctx, mock.AnythingOfType("*domain.Order")).Return(assert.AnError)

	result, err := svc.Checkout(ctx, "user-123", checkoutInput())

	require.NoError(t, err)
	assert.NotNil(t, result)
}
