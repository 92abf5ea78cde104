package gateway

import (
	"context"
)

// CreateIntentInput holds the parameters for creating a remote payment
// intent. Amount is in integer minor units.
type CreateIntentInput struct {
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	ReceiptID string            `json:"receipt"`
	Notes     map[string]string `json:"notes,omitempty"`
}

// Intent is the remote payment order the client opens the gateway's payment
// UI against.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// PaymentGateway creates remote payment intents. Webhook callbacks arrive
// separately and are verified with the shared webhook secret.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error)
}
