package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/pkg/database"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order and its items atomically within a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, done := database.TraceQuery(ctx, "CreateOrder", "INSERT INTO orders")
	defer func() { done(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var shippingJSON []byte
	if o.ShippingAddress != nil {
		shippingJSON, err = json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshal shipping address: %w", err)
		}
	}

	orderQuery := `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, subtotal_amount, discount_amount, shipping_amount, total_amount, currency, coupon_code, shipping_address, cancelled_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.Status,
		o.PaymentStatus,
		o.SubtotalAmount,
		o.DiscountAmount,
		o.ShippingAmount,
		o.TotalAmount,
		o.Currency,
		o.CouponCode,
		shippingJSON,
		o.CancelledReason,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, variant_id, bundle_id, name, sku, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.VariantID,
			item.BundleID,
			item.Name,
			item.SKU,
			item.Price,
			item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID, eagerly loading its items in a
// single query via JSONB_AGG.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	orderQuery := `
		SELECT
			o.id, o.order_number, o.user_id, o.status, o.payment_status,
			o.subtotal_amount, o.discount_amount, o.shipping_amount, o.total_amount,
			o.currency, o.coupon_code, o.shipping_address, o.cancelled_reason,
			o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', oi.id,
						'order_id', oi.order_id,
						'product_id', oi.product_id,
						'variant_id', oi.variant_id,
						'bundle_id', oi.bundle_id,
						'name', oi.name,
						'sku', oi.sku,
						'price', oi.price,
						'quantity', oi.quantity,
						'subtotal', oi.price * oi.quantity
					) ORDER BY oi.id
				) FILTER (WHERE oi.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.id = $1
		GROUP BY o.id`

	var (
		o            domain.Order
		shippingJSON []byte
		itemsJSON    []byte
	)

	err := r.pool.QueryRow(ctx, orderQuery, id).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.PaymentStatus,
		&o.SubtotalAmount,
		&o.DiscountAmount,
		&o.ShippingAmount,
		&o.TotalAmount,
		&o.Currency,
		&o.CouponCode,
		&shippingJSON,
		&o.CancelledReason,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if len(shippingJSON) > 0 && string(shippingJSON) != "null" {
		var addr domain.Address
		if err := json.Unmarshal(shippingJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
		o.ShippingAddress = &addr
	}

	if len(itemsJSON) > 0 && string(itemsJSON) != "null" && string(itemsJSON) != "[]" {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	} else {
		o.Items = []domain.OrderItem{}
	}

	return &o, nil
}

// UpdateStatus moves an order out of the pending state. Pending is the only
// non-terminal status, so the guard on the current row makes concurrent
// webhook deliveries race-safe: exactly one delivery observes a row to
// update, the rest get ErrConflict.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status, paymentStatus, reason string) (err error) {
	query := `
		UPDATE orders
		SET status = $2, payment_status = $3, cancelled_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`

	ctx, done := database.TraceQuery(ctx, "UpdateOrderStatus", query)
	defer func() { done(err) }()

	tag, err := r.pool.Exec(ctx, query, id, status, paymentStatus, reason, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check order status: %w", err)
		}
		return apperrors.ErrConflict
	}

	return nil
}

// CountRecentPending counts the user's pending orders created at or after
// the given time. Used by the checkout rate control.
func (r *OrderRepository) CountRecentPending(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE user_id = $1 AND status = $2 AND created_at >= $3`

	var count int
	err := r.pool.QueryRow(ctx, query, userID, domain.OrderStatusPending, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent pending orders: %w", err)
	}

	return count, nil
}
