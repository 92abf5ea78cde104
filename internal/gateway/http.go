package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
)

// HTTPDoer is the interface for executing HTTP requests. Both
// httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPGateway talks to the payment gateway's REST API. Intent creation has
// a bounded timeout via the underlying client; failures surface as
// GatewayUnavailable so checkout can return a generic retry message.
type HTTPGateway struct {
	client  HTTPDoer
	baseURL string
	keyID   string
	secret  string
	logger  *slog.Logger
}

// NewHTTPGateway creates a gateway adapter for the given API endpoint.
func NewHTTPGateway(client HTTPDoer, baseURL, keyID, secret string, logger *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		client:  client,
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		logger:  logger,
	}
}

// CreateIntent creates a remote payment order for the given amount.
func (g *HTTPGateway) CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.secret)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		g.logger.ErrorContext(ctx, "gateway intent creation failed",
			slog.String("receipt", input.ReceiptID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.GatewayUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		g.logger.ErrorContext(ctx, "gateway rejected intent creation",
			slog.String("receipt", input.ReceiptID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, apperrors.GatewayUnavailable(fmt.Errorf("gateway returned status %d", resp.StatusCode))
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, apperrors.GatewayUnavailable(fmt.Errorf("decode intent response: %w", err))
	}

	g.logger.InfoContext(ctx, "payment intent created",
		slog.String("intent_id", intent.ID),
		slog.Int64("amount", intent.Amount),
		slog.String("currency", intent.Currency),
	)

	return &intent, nil
}
