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

// CatalogRepository reads products, variants, bundles, and coupons from
// PostgreSQL for authoritative pricing.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct retrieves a product by id.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, sku, base_price, discount_price
		FROM products
		WHERE id = $1`

	var p domain.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.BasePrice,
		&p.DiscountPrice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// GetVariant retrieves a product variant by id.
func (r *CatalogRepository) GetVariant(ctx context.Context, id string) (*domain.Variant, error) {
	query := `
		SELECT id, product_id, sku, absolute_price, price_adjustment
		FROM product_variants
		WHERE id = $1`

	var v domain.Variant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.ProductID,
		&v.SKU,
		&v.AbsolutePrice,
		&v.PriceAdjustment,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	return &v, nil
}

// GetBundles retrieves bundle definitions for the given ids. Unknown ids
// are simply absent from the returned map.
func (r *CatalogRepository) GetBundles(ctx context.Context, ids []string) (map[string]domain.Bundle, error) {
	bundles := make(map[string]domain.Bundle, len(ids))
	if len(ids) == 0 {
		return bundles, nil
	}

	query := `
		SELECT id, name, price_type, price_value
		FROM bundles
		WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get bundles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Bundle
		if err := rows.Scan(&b.ID, &b.Name, &b.PriceType, &b.PriceValue); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		bundles[b.ID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundles: %w", err)
	}

	return bundles, nil
}

// GetCoupon retrieves a coupon by code.
func (r *CatalogRepository) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `
		SELECT code, discount_type, discount_value, min_order_value, max_discount_amount, usage_limit, times_used, active, valid_until
		FROM coupons
		WHERE code = $1`

	var c domain.Coupon
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinOrderValue,
		&c.MaxDiscountAmount,
		&c.UsageLimit,
		&c.TimesUsed,
		&c.Active,
		&c.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return &c, nil
}

// IncrementCouponUsage bumps a coupon's usage counter.
func (r *CatalogRepository) IncrementCouponUsage(ctx context.Context, code string) error {
	query := `
		UPDATE coupons
		SET times_used = times_used + 1
		WHERE code = $1`

	if _, err := r.pool.Exec(ctx, query, code); err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}

	return nil
}
