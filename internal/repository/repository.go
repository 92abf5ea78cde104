package repository

import (
	"context"
	"time"

	"github.com/solstice-labs/commerce-core/internal/domain"
)

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order and its items into the store atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier, including items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// UpdateStatus changes the order status and payment status, optionally
	// recording a cancellation reason.
	UpdateStatus(ctx context.Context, id, status, paymentStatus, reason string) error

	// CountRecentPending counts the caller's orders still in pending status
	// created at or after the given time.
	CountRecentPending(ctx context.Context, userID string, since time.Time) (int, error)
}

// InventoryRepository is the inventory ledger: atomic all-or-nothing
// reserve and release of stock quantities.
type InventoryRepository interface {
	// Reserve decrements available stock for every item in one transaction.
	// If any item has insufficient stock the whole reservation is rolled
	// back and ErrStockUnavailable is returned.
	Reserve(ctx context.Context, items []domain.ReservationItem) error

	// Release returns previously reserved quantities to available stock.
	// It is only invoked with exactly the item set a prior successful
	// Reserve consumed.
	Release(ctx context.Context, items []domain.ReservationItem) error
}

// InvoiceRepository persists invoices and allocates invoice numbers.
type InvoiceRepository interface {
	// Create inserts the invoice if no row exists for its order yet.
	// A concurrent or earlier insert for the same order is not an error;
	// callers re-read to observe the winning row.
	Create(ctx context.Context, invoice *domain.Invoice) error

	// GetByOrderID retrieves the invoice for an order, or ErrNotFound.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error)

	// NextNumber atomically allocates the next value from the monotonic
	// invoice number sequence.
	NextNumber(ctx context.Context) (int64, error)

	// UpdatePDFURL replaces the stored document URL for an order's invoice.
	UpdatePDFURL(ctx context.Context, orderID, pdfURL string) error
}

// PaymentRepository persists payment transactions.
type PaymentRepository interface {
	// Create inserts a new payment transaction.
	Create(ctx context.Context, txn *domain.PaymentTransaction) error

	// GetByOrderID retrieves the transaction for an order, or ErrNotFound.
	GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentTransaction, error)

	// UpdateStatus sets the transaction status and records the gateway
	// payment id and signature when present.
	UpdateStatus(ctx context.Context, orderID, status, gatewayPaymentID, signature string) error
}

// CatalogRepository reads the catalog state the pricing engine depends on.
type CatalogRepository interface {
	// GetProduct retrieves a product by id, or ErrNotFound.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetVariant retrieves a product variant by id, or ErrNotFound.
	GetVariant(ctx context.Context, id string) (*domain.Variant, error)

	// GetBundles retrieves the bundle definitions for the given ids.
	// Missing ids are simply absent from the result.
	GetBundles(ctx context.Context, ids []string) (map[string]domain.Bundle, error)

	// GetCoupon retrieves a coupon by code, or ErrNotFound.
	GetCoupon(ctx context.Context, code string) (*domain.Coupon, error)

	// IncrementCouponUsage bumps a coupon's usage counter.
	IncrementCouponUsage(ctx context.Context, code string) error
}

// AuditRepository appends reconciliation audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
}

// CartRepository stores the user's cart.
type CartRepository interface {
	// Get retrieves a cart by user id, or ErrNotFound.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists a cart.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes a user's cart. Deleting an absent cart is not an error.
	Delete(ctx context.Context, userID string) error
}
