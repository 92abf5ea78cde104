package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/internal/event"
	"github.com/solstice-labs/commerce-core/internal/invoice"
	"github.com/solstice-labs/commerce-core/internal/mailer"
	"github.com/solstice-labs/commerce-core/internal/repository"
	"github.com/solstice-labs/commerce-core/internal/storage"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// RoleAdmin is the role allowed to access any user's invoices.
const RoleAdmin = "admin"

// InvoiceService issues and serves invoices for paid orders. Issuance is
// idempotent per order and invoice numbers are never reissued.
type InvoiceService struct {
	invoices repository.InvoiceRepository
	orders   repository.OrderRepository
	storage  storage.Storage
	sender   mailer.Sender
	producer event.Publisher
	logger   *slog.Logger
}

// NewInvoiceService creates a new invoice service.
func NewInvoiceService(
	invoices repository.InvoiceRepository,
	orders repository.OrderRepository,
	store storage.Storage,
	sender mailer.Sender,
	producer event.Publisher,
	logger *slog.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		orders:   orders,
		storage:  store,
		sender:   sender,
		producer: producer,
		logger:   logger,
	}
}

// GetInvoice returns the invoice for an order, issuing it first if needed.
// Non-admin callers may only see their own orders.
func (s *InvoiceService) GetInvoice(ctx context.Context, userID, role, orderID string) (*domain.Invoice, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for invoice: %w", err)
	}

	if role != RoleAdmin && order.UserID != userID {
		return nil, apperrors.Forbidden("you do not have access to this order")
	}

	if order.Status != domain.OrderStatusPaid {
		return nil, apperrors.InvalidInput("invoice is only available for paid orders")
	}

	return s.EnsureInvoice(ctx, order)
}

// EnsureInvoice is the idempotent issuance path. Concurrent callers for the
// same order converge on a single invoice row: the insert is
// insert-if-absent and every caller re-reads the winning row before
// attaching the document. A previously assigned number is always reused.
func (s *InvoiceService) EnsureInvoice(ctx context.Context, order *domain.Order) (*domain.Invoice, error) {
	existing, err := s.invoices.GetByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		if existing.PDFURL != "" {
			return existing, nil
		}
		// Row exists but the document was never attached; finish the job
		// with the number already assigned.
		return s.attachDocument(ctx, order, existing)
	case errors.Is(err, apperrors.ErrNotFound):
		// Fall through to issuance.
	default:
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	seq, err := s.invoices.NextNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate invoice number: %w", err)
	}

	now := time.Now().UTC()
	inv := &domain.Invoice{
		ID:            uuid.New().String(),
		OrderID:       order.ID,
		InvoiceNumber: domain.FormatInvoiceNumber(seq),
		TotalAmount:   order.TotalAmount,
		Status:        domain.InvoiceStatusIssued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	// Re-read so a concurrent issuer and we agree on one row. A skipped
	// sequence value from losing the race is acceptable; numbers must be
	// monotonic, not dense.
	winner, err := s.invoices.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("re-read invoice: %w", err)
	}

	if winner.PDFURL != "" {
		return winner, nil
	}

	return s.attachDocument(ctx, order, winner)
}

// Regenerate re-renders and re-uploads the invoice document for an order.
// The invoice number never changes.
func (s *InvoiceService) Regenerate(ctx context.Context, orderID string) (*domain.Invoice, error) {
	inv, err := s.invoices.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get invoice for regeneration: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for regeneration: %w", err)
	}

	return s.attachDocument(ctx, order, inv)
}

// attachDocument renders the invoice, uploads it under the order's stable
// key, and records the document URL. Repeating it overwrites the document
// in place.
func (s *InvoiceService) attachDocument(ctx context.Context, order *domain.Order, inv *domain.Invoice) (*domain.Invoice, error) {
	doc, err := invoice.Render(order, inv.InvoiceNumber, inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}

	result, err := s.storage.Upload(ctx, &storage.UploadInput{
		Key:         order.OrderNumber + ".html",
		ContentType: "text/html",
		Size:        int64(len(doc)),
		Data:        bytes.NewReader(doc),
	})
	if err != nil {
		return nil, fmt.Errorf("upload invoice document: %w", err)
	}

	if err := s.invoices.UpdatePDFURL(ctx, order.ID, result.URL); err != nil {
		return nil, fmt.Errorf("record invoice document url: %w", err)
	}
	inv.PDFURL = result.URL

	// Delivery is best effort; the invoice stands regardless.
	if err := s.sender.Send(ctx, &mailer.Message{
		To:      order.UserID,
		Subject: fmt.Sprintf("Your invoice %s", inv.InvoiceNumber),
		HTML:    doc,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to send invoice mail",
			slog.String("order_id", order.ID),
			slog.String("invoice_number", inv.InvoiceNumber),
			slog.String("error", err.Error()),
		)
	}

	// Publish event; log but do not fail on error.
	if err := s.producer.PublishInvoiceIssued(ctx, inv); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish invoice.issued event",
			slog.String("invoice_id", inv.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "invoice document attached",
		slog.String("order_id", order.ID),
		slog.String("invoice_number", inv.InvoiceNumber),
		slog.String("pdf_url", inv.PDFURL),
	)

	return inv, nil
}
