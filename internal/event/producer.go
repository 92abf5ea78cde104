package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solstice-labs/commerce-core/internal/domain"
	pkgkafka "github.com/solstice-labs/commerce-core/pkg/kafka"
)

// Kafka topics for checkout and reconciliation events.
var (
	TopicOrderCreated   = pkgkafka.Topic("order", "created")
	TopicOrderPaid      = pkgkafka.Topic("order", "paid")
	TopicOrderCancelled = pkgkafka.Topic("order", "cancelled")
	TopicInvoiceIssued  = pkgkafka.Topic("invoice", "issued")
)

// Aggregate type constants.
const (
	AggregateTypeOrder   = "order"
	AggregateTypeInvoice = "invoice"
)

// Source identifier for events originating from this service.
const Source = "commerce-core"

// Publisher is the event surface the service layer depends on. Publish
// failures are logged by callers and never fail the business operation.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderPaid(ctx context.Context, orderID, gatewayPaymentID string) error
	PublishOrderCancelled(ctx context.Context, orderID, reason string) error
	PublishInvoiceIssued(ctx context.Context, inv *domain.Invoice) error
}

// OrderCreatedData is the payload for an order.created event (full order snapshot).
type OrderCreatedData struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Status          string          `json:"status"`
	Items           []OrderItemData `json:"items"`
	SubtotalAmount  int64           `json:"subtotal_amount"`
	DiscountAmount  int64           `json:"discount_amount"`
	ShippingAmount  int64           `json:"shipping_amount"`
	TotalAmount     int64           `json:"total_amount"`
	Currency        string          `json:"currency"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	BundleID  string `json:"bundle_id,omitempty"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// OrderPaidData is the payload for an order.paid event.
type OrderPaidData struct {
	OrderID          string `json:"order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}

// OrderCancelledData is the payload for an order.cancelled event.
type OrderCancelledData struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// InvoiceIssuedData is the payload for an invoice.issued event.
type InvoiceIssuedData struct {
	InvoiceID     string `json:"invoice_id"`
	OrderID       string `json:"order_id"`
	InvoiceNumber string `json:"invoice_number"`
	PDFURL        string `json:"pdf_url,omitempty"`
	TotalAmount   int64  `json:"total_amount"`
}

// Producer publishes checkout domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event with the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			BundleID:  item.BundleID,
			Name:      item.Name,
			SKU:       item.SKU,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	data := OrderCreatedData{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		Items:           items,
		SubtotalAmount:  order.SubtotalAmount,
		DiscountAmount:  order.DiscountAmount,
		ShippingAmount:  order.ShippingAmount,
		TotalAmount:     order.TotalAmount,
		Currency:        order.Currency,
		ShippingAddress: order.ShippingAddress,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCreated, order.ID, AggregateTypeOrder, Source, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
	)

	return nil
}

// PublishOrderPaid publishes an order.paid event.
func (p *Producer) PublishOrderPaid(ctx context.Context, orderID, gatewayPaymentID string) error {
	data := OrderPaidData{
		OrderID:          orderID,
		GatewayPaymentID: gatewayPaymentID,
	}

	event, err := pkgkafka.NewEvent(TopicOrderPaid, orderID, AggregateTypeOrder, Source, data)
	if err != nil {
		return fmt.Errorf("create order.paid event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderPaid, event); err != nil {
		return fmt.Errorf("publish order.paid event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.paid event",
		slog.String("order_id", orderID),
	)

	return nil
}

// PublishOrderCancelled publishes an order.cancelled event.
func (p *Producer) PublishOrderCancelled(ctx context.Context, orderID, reason string) error {
	data := OrderCancelledData{
		OrderID: orderID,
		Reason:  reason,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCancelled, orderID, AggregateTypeOrder, Source, data)
	if err != nil {
		return fmt.Errorf("create order.cancelled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCancelled, event); err != nil {
		return fmt.Errorf("publish order.cancelled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.cancelled event",
		slog.String("order_id", orderID),
		slog.String("reason", reason),
	)

	return nil
}

// PublishInvoiceIssued publishes an invoice.issued event.
func (p *Producer) PublishInvoiceIssued(ctx context.Context, inv *domain.Invoice) error {
	data := InvoiceIssuedData{
		InvoiceID:     inv.ID,
		OrderID:       inv.OrderID,
		InvoiceNumber: inv.InvoiceNumber,
		PDFURL:        inv.PDFURL,
		TotalAmount:   inv.TotalAmount,
	}

	event, err := pkgkafka.NewEvent(TopicInvoiceIssued, inv.ID, AggregateTypeInvoice, Source, data)
	if err != nil {
		return fmt.Errorf("create invoice.issued event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicInvoiceIssued, event); err != nil {
		return fmt.Errorf("publish invoice.issued event: %w", err)
	}

	p.logger.DebugContext(ctx, "published invoice.issued event",
		slog.String("invoice_id", inv.ID),
		slog.String("order_id", inv.OrderID),
	)

	return nil
}
