package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/internal/repository"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// OrderService serves order reads. Orders are mutated only by checkout and
// webhook reconciliation.
type OrderService struct {
	orders repository.OrderRepository
	logger *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(orders repository.OrderRepository, logger *slog.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		logger: logger,
	}
}

// GetOrder retrieves an order by id. Non-admin callers may only see their
// own orders.
func (s *OrderService) GetOrder(ctx context.Context, userID, role, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if role != RoleAdmin && order.UserID != userID {
		return nil, apperrors.Forbidden("you do not have access to this order")
	}

	return order, nil
}
