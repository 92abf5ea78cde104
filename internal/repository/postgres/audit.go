package postgres

import (
	"context"
	"fmt"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/pkg/database"
)

// AuditRepository appends reconciliation audit entries to PostgreSQL.
type AuditRepository struct {
	pool database.DBTX
}

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository(pool database.DBTX) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append inserts an audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, order_id, event_type, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.OrderID,
		entry.EventType,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}
