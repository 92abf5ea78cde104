package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/pkg/database"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// InvoiceRepository implements repository.InvoiceRepository using PostgreSQL.
type InvoiceRepository struct {
	pool database.DBTX
}

// NewInvoiceRepository creates a new PostgreSQL-backed invoice repository.
func NewInvoiceRepository(pool database.DBTX) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Create inserts the invoice if no row exists for its order yet. The unique
// constraint on order_id makes concurrent capture deliveries collapse to a
// single row; losing the race is not an error.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (id, order_id, invoice_number, pdf_url, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		inv.ID,
		inv.OrderID,
		inv.InvoiceNumber,
		inv.PDFURL,
		inv.TotalAmount,
		inv.Status,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	return nil
}

// GetByOrderID retrieves the invoice for an order.
func (r *InvoiceRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Invoice, error) {
	query := `
		SELECT id, order_id, invoice_number, pdf_url, total_amount, status, created_at, updated_at
		FROM invoices
		WHERE order_id = $1`

	var inv domain.Invoice
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&inv.ID,
		&inv.OrderID,
		&inv.InvoiceNumber,
		&inv.PDFURL,
		&inv.TotalAmount,
		&inv.Status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get invoice by order id: %w", err)
	}

	return &inv, nil
}

// NextNumber atomically allocates the next invoice number from the
// single-row sequence table. The UPDATE ... RETURNING serializes concurrent
// allocations so numbers never collide or repeat.
func (r *InvoiceRepository) NextNumber(ctx context.Context) (int64, error) {
	query := `
		UPDATE invoice_number_seq
		SET value = value + 1
		RETURNING value`

	var value int64
	if err := r.pool.QueryRow(ctx, query).Scan(&value); err != nil {
		return 0, fmt.Errorf("allocate invoice number: %w", err)
	}

	return value, nil
}

// UpdatePDFURL replaces the stored document URL for an order's invoice.
// Regeneration overwrites the document but never the number.
func (r *InvoiceRepository) UpdatePDFURL(ctx context.Context, orderID, pdfURL string) error {
	query := `
		UPDATE invoices
		SET pdf_url = $2, updated_at = NOW()
		WHERE order_id = $1`

	tag, err := r.pool.Exec(ctx, query, orderID, pdfURL)
	if err != nil {
		return fmt.Errorf("update invoice pdf url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
