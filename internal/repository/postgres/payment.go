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

// PaymentRepository implements repository.PaymentRepository using PostgreSQL.
type PaymentRepository struct {
	pool database.DBTX
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(pool database.DBTX) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create inserts a new payment transaction.
func (r *PaymentRepository) Create(ctx context.Context, txn *domain.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (id, order_id, gateway_order_id, gateway_payment_id, gateway_signature, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		txn.ID,
		txn.OrderID,
		txn.GatewayOrderID,
		txn.GatewayPaymentID,
		txn.GatewaySignature,
		txn.Amount,
		txn.Currency,
		txn.Status,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment transaction: %w", err)
	}

	return nil
}

// GetByOrderID retrieves the payment transaction for an order.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentTransaction, error) {
	query := `
		SELECT id, order_id, gateway_order_id, gateway_payment_id, gateway_signature, amount, currency, status, created_at, updated_at
		FROM payment_transactions
		WHERE order_id = $1`

	var txn domain.PaymentTransaction
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&txn.ID,
		&txn.OrderID,
		&txn.GatewayOrderID,
		&txn.GatewayPaymentID,
		&txn.GatewaySignature,
		&txn.Amount,
		&txn.Currency,
		&txn.Status,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get payment transaction by order id: %w", err)
	}

	return &txn, nil
}

// UpdateStatus sets the transaction status and records the gateway payment
// id and signature when the event carries them.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, orderID, status, gatewayPaymentID, signature string) error {
	query := `
		UPDATE payment_transactions
		SET status = $2,
			gateway_payment_id = COALESCE(NULLIF($3, ''), gateway_payment_id),
			gateway_signature = COALESCE(NULLIF($4, ''), gateway_signature),
			updated_at = NOW()
		WHERE order_id = $1`

	tag, err := r.pool.Exec(ctx, query, orderID, status, gatewayPaymentID, signature)
	if err != nil {
		return fmt.Errorf("update payment transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
