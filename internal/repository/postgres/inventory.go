package postgres

import (
	"context"
	"fmt"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/pkg/database"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// InventoryRepository implements the inventory ledger using PostgreSQL.
// Reservation is a guarded conditional decrement per item inside one
// transaction, so concurrent reservations for the same SKU serialize on the
// row lock and can never oversell.
type InventoryRepository struct {
	pool database.DBTX
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(pool database.DBTX) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Reserve atomically decrements available stock for all items. Either every
// quantity is decremented or none are: the first item with insufficient
// stock rolls back the whole transaction.
func (r *InventoryRepository) Reserve(ctx context.Context, items []domain.ReservationItem) (err error) {
	if len(items) == 0 {
		return apperrors.InvalidInput("no items to reserve")
	}

	query := `
		UPDATE stock
		SET quantity = quantity - $3, updated_at = NOW()
		WHERE product_id = $1 AND variant_id = $2 AND quantity >= $3`

	ctx, done := database.TraceQuery(ctx, "ReserveStock", query)
	defer func() { done(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		if item.Quantity <= 0 {
			return apperrors.InvalidInput("reservation quantity must be greater than 0")
		}

		tag, err := tx.Exec(ctx, query, item.ProductID, item.VariantID, item.Quantity)
		if err != nil {
			return fmt.Errorf("reserve stock for product %s: %w", item.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			// Insufficient stock or unknown SKU; abandon the whole set.
			return apperrors.StockUnavailable()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}

	return nil
}

// Release returns previously reserved quantities to available stock. It is
// only called with exactly the item set a prior successful Reserve consumed,
// so the increments are unconditional.
func (r *InventoryRepository) Release(ctx context.Context, items []domain.ReservationItem) (err error) {
	if len(items) == 0 {
		return nil
	}

	query := `
		UPDATE stock
		SET quantity = quantity + $3, updated_at = NOW()
		WHERE product_id = $1 AND variant_id = $2`

	ctx, done := database.TraceQuery(ctx, "ReleaseStock", query)
	defer func() { done(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		if _, err := tx.Exec(ctx, query, item.ProductID, item.VariantID, item.Quantity); err != nil {
			return fmt.Errorf("release stock for product %s: %w", item.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	return nil
}
