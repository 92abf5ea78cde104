package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/internal/event"
	"github.com/solstice-labs/commerce-core/internal/gateway"
	"github.com/solstice-labs/commerce-core/internal/pricing"
	"github.com/solstice-labs/commerce-core/internal/repository"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

const (
	// pendingOrderWindow is how far back the pending-order rate check looks.
	pendingOrderWindow = 15 * time.Minute

	// maxPendingOrders is the number of pending orders a user may accumulate
	// within the window before further checkouts are refused.
	maxPendingOrders = 5
)

// CheckoutService orchestrates the checkout saga: price the cart, reserve
// inventory, persist the order, and create the payment intent.
type CheckoutService struct {
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	payments  repository.PaymentRepository
	catalog   repository.CatalogRepository
	carts     repository.CartRepository
	gateway   gateway.PaymentGateway
	producer  event.Publisher
	engine    *pricing.Engine
	logger    *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	payments repository.PaymentRepository,
	catalog repository.CatalogRepository,
	carts repository.CartRepository,
	gw gateway.PaymentGateway,
	producer event.Publisher,
	engine *pricing.Engine,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		inventory: inventory,
		payments:  payments,
		catalog:   catalog,
		carts:     carts,
		gateway:   gw,
		producer:  producer,
		engine:    engine,
		logger:    logger,
	}
}

// CheckoutInput holds the parameters for placing an order.
type CheckoutInput struct {
	ShippingAddress *domain.Address `json:"shipping_address" validate:"required"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Currency        string          `json:"currency" validate:"required,len=3"`
}

// CheckoutResult is returned to the client so it can hand the gateway order
// id to the payment widget.
type CheckoutResult struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// Checkout places an order from the user's stored cart. Totals are always
// recomputed server side from catalog state. On gateway failure the
// inventory reservation is released and the order is left pending for
// webhook reconciliation to resolve.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, input *CheckoutInput) (*CheckoutResult, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input == nil {
		return nil, apperrors.InvalidInput("checkout input is required")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	if len(input.Currency) != 3 {
		return nil, apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}

	now := time.Now().UTC()

	// Pending-order rate check.
	pendingCount, err := s.orders.CountRecentPending(ctx, userID, now.Add(-pendingOrderWindow))
	if err != nil {
		return nil, fmt.Errorf("count recent pending orders: %w", err)
	}
	if pendingCount >= maxPendingOrders {
		return nil, apperrors.RateLimited("too many unpaid orders, complete or wait for them to expire")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidInput("cart is empty")
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	lines, bundles, err := s.loadCatalog(ctx, cart)
	if err != nil {
		return nil, err
	}

	coupon := s.loadCoupon(ctx, input.CouponCode)

	priced, err := s.engine.Price(lines, bundles, coupon, now)
	if err != nil {
		return nil, fmt.Errorf("price cart: %w", err)
	}

	order := buildOrder(userID, input, priced, now)

	// Saga step tracking for logging; compensation happens inline below.
	steps := []domain.SagaStep{
		domain.NewSagaStep(domain.SagaStepReserveInventory),
		domain.NewSagaStep(domain.SagaStepPersistOrder),
		domain.NewSagaStep(domain.SagaStepCreateIntent),
	}

	// Step 1: reserve inventory, all-or-nothing.
	reservation := order.ReservationItems()
	if err := s.inventory.Reserve(ctx, reservation); err != nil {
		steps[0].Fail(err.Error())
		return nil, fmt.Errorf("reserve inventory: %w", err)
	}
	steps[0].Complete()

	// Step 2: persist the order. Compensation on failure releases the hold.
	if err := s.orders.Create(ctx, order); err != nil {
		steps[1].Fail(err.Error())
		s.releaseReservation(ctx, order.ID, reservation, &steps[0])
		return nil, fmt.Errorf("persist order: %w", err)
	}
	steps[1].Complete()

	// Step 3: create the payment intent. On failure the reservation is
	// released but the order stays pending; reconciliation or expiry
	// resolves it later.
	intent, err := s.gateway.CreateIntent(ctx, gateway.CreateIntentInput{
		Amount:    order.TotalAmount,
		Currency:  order.Currency,
		ReceiptID: order.OrderNumber,
		Notes: map[string]string{
			"order_id": order.ID,
			"user_id":  order.UserID,
		},
	})
	if err != nil {
		steps[2].Fail(err.Error())
		s.releaseReservation(ctx, order.ID, reservation, &steps[0])
		s.logger.ErrorContext(ctx, "payment intent creation failed, order left pending",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	steps[2].Complete()

	txn := &domain.PaymentTransaction{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		GatewayOrderID: intent.ID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Status:         domain.TransactionStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.payments.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("persist payment transaction: %w", err)
	}

	// Coupon usage is best effort; a missed bump only under-reports usage.
	if priced.CouponApplied {
		if err := s.catalog.IncrementCouponUsage(ctx, coupon.Code); err != nil {
			s.logger.ErrorContext(ctx, "failed to increment coupon usage",
				slog.String("coupon_code", coupon.Code),
				slog.String("error", err.Error()),
			)
		}
	}

	// Publish event; log but do not fail on error.
	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("user_id", userID),
		slog.String("gateway_order_id", intent.ID),
		slog.Int64("total_amount", order.TotalAmount),
	)

	return &CheckoutResult{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: intent.ID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
	}, nil
}

// loadCatalog resolves every cart line to its live catalog snapshot and
// collects the bundle definitions referenced by the cart.
func (s *CheckoutService) loadCatalog(ctx context.Context, cart *domain.Cart) ([]pricing.Line, map[string]domain.Bundle, error) {
	lines := make([]pricing.Line, 0, len(cart.Items))
	bundleIDs := make([]string, 0)
	seenBundles := make(map[string]bool)

	for i, item := range cart.Items {
		if item.Quantity <= 0 {
			return nil, nil, apperrors.InvalidInput(fmt.Sprintf("cart line %d: quantity must be greater than 0", i))
		}

		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, nil, apperrors.InvalidInput(fmt.Sprintf("cart line %d: product no longer available", i))
			}
			return nil, nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}

		var variant *domain.Variant
		if item.VariantID != "" {
			variant, err = s.catalog.GetVariant(ctx, item.VariantID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil, nil, apperrors.InvalidInput(fmt.Sprintf("cart line %d: variant no longer available", i))
				}
				return nil, nil, fmt.Errorf("load variant %s: %w", item.VariantID, err)
			}
		}

		if item.BundleID != "" && !seenBundles[item.BundleID] {
			seenBundles[item.BundleID] = true
			bundleIDs = append(bundleIDs, item.BundleID)
		}

		lines = append(lines, pricing.Line{
			Product:  *product,
			Variant:  variant,
			BundleID: item.BundleID,
			Quantity: item.Quantity,
		})
	}

	if len(bundleIDs) == 0 {
		return lines, map[string]domain.Bundle{}, nil
	}

	bundles, err := s.catalog.GetBundles(ctx, bundleIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load bundles: %w", err)
	}
	return lines, bundles, nil
}

// loadCoupon fetches the coupon for the given code. Any failure degrades to
// no coupon; applicability itself is judged by the pricing engine.
func (s *CheckoutService) loadCoupon(ctx context.Context, code string) *domain.Coupon {
	if code == "" {
		return nil
	}
	coupon, err := s.catalog.GetCoupon(ctx, code)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to load coupon, pricing without it",
				slog.String("coupon_code", code),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return coupon
}

// releaseReservation is the compensating action for a completed reserve step.
func (s *CheckoutService) releaseReservation(ctx context.Context, orderID string, items []domain.ReservationItem, step *domain.SagaStep) {
	if err := s.inventory.Release(ctx, items); err != nil {
		s.logger.ErrorContext(ctx, "failed to release inventory reservation",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return
	}
	step.Compensate()
}

// buildOrder constructs the pending order from the priced result.
func buildOrder(userID string, input *CheckoutInput, priced *pricing.Result, now time.Time) *domain.Order {
	orderID := uuid.New().String()

	items := make([]domain.OrderItem, len(priced.Lines))
	for i, line := range priced.Lines {
		items[i] = domain.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			BundleID:  line.BundleID,
			Name:      line.Name,
			SKU:       line.SKU,
			Price:     line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.LineTotal,
		}
	}

	couponCode := ""
	if priced.CouponApplied {
		couponCode = input.CouponCode
	}

	return &domain.Order{
		ID:              orderID,
		OrderNumber:     domain.NewOrderNumber(now),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Items:           items,
		SubtotalAmount:  priced.Subtotal,
		DiscountAmount:  priced.Discount,
		ShippingAmount:  priced.Shipping,
		TotalAmount:     priced.GrandTotal,
		Currency:        input.Currency,
		CouponCode:      couponCode,
		ShippingAddress: input.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
