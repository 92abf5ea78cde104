package domain

import (
	"encoding/json"
	"time"
)

// Payment transaction status constants. A dispute is carried here as a
// sub-status; it never changes the order's own status.
const (
	TransactionStatusCreated     = "created"
	TransactionStatusSuccess     = "success"
	TransactionStatusFailed      = "failed"
	TransactionStatusDispute     = "dispute"
	TransactionStatusDisputeLost = "dispute_lost"
)

// PaymentTransaction records one payment attempt against an order, 1:1 per
// attempt with the remote gateway intent.
type PaymentTransaction struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	GatewaySignature string    `json:"gateway_signature,omitempty"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Gateway webhook event type constants.
const (
	EventPaymentCaptured        = "payment.captured"
	EventPaymentFailed          = "payment.failed"
	EventPaymentDisputeCreated  = "payment.dispute.created"
	EventPaymentDisputeResolved = "payment.dispute.resolved"
	EventPaymentDisputeLost     = "payment.dispute.lost"
)

// GatewayEvent is a verified, decoded webhook payload from the payment
// gateway.
type GatewayEvent struct {
	Type    string        `json:"event"`
	Payment PaymentEntity `json:"payment"`
}

// PaymentEntity is the payment object embedded in a gateway event.
type PaymentEntity struct {
	ID             string            `json:"id"`
	GatewayOrderID string            `json:"order_id"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Signature      string            `json:"signature,omitempty"`
	ErrorReason    string            `json:"error_reason,omitempty"`
	Notes          map[string]string `json:"notes"`
}

// OrderID returns the local order id carried in the event notes.
func (e *GatewayEvent) OrderID() string {
	return e.Payment.Notes["order_id"]
}

// UserID returns the purchasing user's id carried in the event notes.
func (e *GatewayEvent) UserID() string {
	return e.Payment.Notes["user_id"]
}

// ParseGatewayEvent decodes a raw webhook body. Signature verification must
// happen before this is interpreted.
func ParseGatewayEvent(raw []byte) (*GatewayEvent, error) {
	var ev GatewayEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// AuditEntry records a reconciliation decision for operational review,
// currently used for dispute events.
type AuditEntry struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	EventType string    `json:"event_type"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
