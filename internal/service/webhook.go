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
	"github.com/solstice-labs/commerce-core/internal/repository"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// WebhookService reconciles verified gateway events against local order
// state. Every handler is idempotent: the gateway retries deliveries and
// may deliver the same event more than once.
type WebhookService struct {
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	inventory repository.InventoryRepository
	carts     repository.CartRepository
	audit     repository.AuditRepository
	invoices  *InvoiceService
	producer  event.Publisher
	logger    *slog.Logger
}

// NewWebhookService creates a new webhook reconciliation service.
func NewWebhookService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	inventory repository.InventoryRepository,
	carts repository.CartRepository,
	audit repository.AuditRepository,
	invoices *InvoiceService,
	producer event.Publisher,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		orders:    orders,
		payments:  payments,
		inventory: inventory,
		carts:     carts,
		audit:     audit,
		invoices:  invoices,
		producer:  producer,
		logger:    logger,
	}
}

// HandleEvent dispatches a verified gateway event. Unknown event types are
// acknowledged without action so the gateway stops retrying them.
func (s *WebhookService) HandleEvent(ctx context.Context, ev *domain.GatewayEvent) error {
	switch ev.Type {
	case domain.EventPaymentCaptured:
		return s.handleCaptured(ctx, ev)
	case domain.EventPaymentFailed:
		return s.handleFailed(ctx, ev)
	case domain.EventPaymentDisputeCreated, domain.EventPaymentDisputeResolved, domain.EventPaymentDisputeLost:
		return s.handleDispute(ctx, ev)
	default:
		s.logger.WarnContext(ctx, "ignoring unknown gateway event type",
			slog.String("event_type", ev.Type),
		)
		return nil
	}
}

// handleCaptured settles a successful payment: the order moves to paid, the
// transaction is marked success, the invoice is issued, and the cart is
// cleared. A redelivery after settlement only re-ensures the invoice.
func (s *WebhookService) handleCaptured(ctx context.Context, ev *domain.GatewayEvent) error {
	orderID := ev.OrderID()
	if orderID == "" {
		return apperrors.InvalidInput("captured event carries no order id")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order for capture: %w", err)
	}

	if order.Status == domain.OrderStatusPaid {
		// Already reconciled; re-ensuring the invoice covers a crash
		// between the status update and issuance.
		if _, err := s.invoices.EnsureInvoice(ctx, order); err != nil {
			return fmt.Errorf("re-ensure invoice: %w", err)
		}
		return nil
	}
	if !order.CanTransitionTo(domain.OrderStatusPaid) {
		s.appendAudit(ctx, orderID, ev.Type, "capture received for cancelled order, manual review required")
		s.logger.ErrorContext(ctx, "capture received for cancelled order",
			slog.String("order_id", orderID),
			slog.String("gateway_payment_id", ev.Payment.ID),
		)
		return nil
	}

	if err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusPaid, domain.PaymentStatusSuccess, ""); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// A concurrent delivery won the transition; its side effects
			// are in flight, so this one backs off.
			s.logger.InfoContext(ctx, "order already transitioned by concurrent delivery",
				slog.String("order_id", orderID),
			)
			return nil
		}
		return fmt.Errorf("mark order paid: %w", err)
	}
	order.Status = domain.OrderStatusPaid
	order.PaymentStatus = domain.PaymentStatusSuccess

	if err := s.payments.UpdateStatus(ctx, orderID, domain.TransactionStatusSuccess, ev.Payment.ID, ev.Payment.Signature); err != nil {
		return fmt.Errorf("mark transaction success: %w", err)
	}

	if _, err := s.invoices.EnsureInvoice(ctx, order); err != nil {
		return fmt.Errorf("ensure invoice: %w", err)
	}

	// The cart served its purpose; a failed delete only leaves a stale cart.
	if err := s.carts.Delete(ctx, order.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after capture",
			slog.String("user_id", order.UserID),
			slog.String("error", err.Error()),
		)
	}

	// Publish event; log but do not fail on error.
	if err := s.producer.PublishOrderPaid(ctx, orderID, ev.Payment.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.paid event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "payment captured",
		slog.String("order_id", orderID),
		slog.String("gateway_payment_id", ev.Payment.ID),
		slog.Int64("amount", ev.Payment.Amount),
	)

	return nil
}

// handleFailed cancels a pending order and returns its reserved stock. An
// order already settled or cancelled is left untouched.
func (s *WebhookService) handleFailed(ctx context.Context, ev *domain.GatewayEvent) error {
	orderID := ev.OrderID()
	if orderID == "" {
		return apperrors.InvalidInput("failed event carries no order id")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order for failure: %w", err)
	}

	if !order.CanTransitionTo(domain.OrderStatusCancelled) {
		s.logger.InfoContext(ctx, "ignoring payment failure for non-pending order",
			slog.String("order_id", orderID),
			slog.String("status", order.Status),
		)
		return nil
	}

	reason := ev.Payment.ErrorReason
	if reason == "" {
		reason = "payment failed"
	}

	// Claim the transition first so only one delivery releases the
	// reservation, then return the stock.
	if err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled, domain.PaymentStatusFailed, reason); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.logger.InfoContext(ctx, "order already transitioned by concurrent delivery",
				slog.String("order_id", orderID),
			)
			return nil
		}
		return fmt.Errorf("cancel order on failure: %w", err)
	}

	if err := s.inventory.Release(ctx, order.ReservationItems()); err != nil {
		// The order is cancelled but its stock is still held; retries will
		// skip the non-pending order, so flag it for manual review.
		s.appendAudit(ctx, orderID, ev.Type, "stock release failed after cancellation, manual review required")
		return fmt.Errorf("release reservation on failure: %w", err)
	}

	if err := s.payments.UpdateStatus(ctx, orderID, domain.TransactionStatusFailed, ev.Payment.ID, ""); err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}

	// Publish event; log but do not fail on error.
	if err := s.producer.PublishOrderCancelled(ctx, orderID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.cancelled event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "payment failed, order cancelled",
		slog.String("order_id", orderID),
		slog.String("reason", reason),
	)

	return nil
}

// handleDispute records dispute lifecycle changes on the transaction and
// the audit log. The order's own status is never touched by disputes.
func (s *WebhookService) handleDispute(ctx context.Context, ev *domain.GatewayEvent) error {
	orderID := ev.OrderID()
	if orderID == "" {
		return apperrors.InvalidInput("dispute event carries no order id")
	}

	var txnStatus string
	switch ev.Type {
	case domain.EventPaymentDisputeCreated:
		txnStatus = domain.TransactionStatusDispute
	case domain.EventPaymentDisputeResolved:
		txnStatus = domain.TransactionStatusSuccess
	case domain.EventPaymentDisputeLost:
		txnStatus = domain.TransactionStatusDisputeLost
	}

	if err := s.payments.UpdateStatus(ctx, orderID, txnStatus, ev.Payment.ID, ""); err != nil {
		return fmt.Errorf("update transaction for dispute: %w", err)
	}

	detail := ev.Payment.ErrorReason
	if detail == "" {
		detail = ev.Type
	}
	s.appendAudit(ctx, orderID, ev.Type, detail)

	s.logger.InfoContext(ctx, "dispute event recorded",
		slog.String("order_id", orderID),
		slog.String("event_type", ev.Type),
		slog.String("transaction_status", txnStatus),
	)

	return nil
}

// appendAudit writes an audit entry; failures are logged, never propagated.
func (s *WebhookService) appendAudit(ctx context.Context, orderID, eventType, detail string) {
	entry := &domain.AuditEntry{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		EventType: eventType,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry",
			slog.String("order_id", orderID),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
