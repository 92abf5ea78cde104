package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/internal/gateway"
	"github.com/solstice-labs/commerce-core/internal/service"
	apperrors "github.com/solstice-labs/commerce-core/pkg/errors"
	"github.com/solstice-labs/commerce-core/pkg/httputil"
)

// SignatureHeader carries the gateway's HMAC over the raw request body.
const SignatureHeader = "X-Gateway-Signature"

// WebhookHandler receives gateway webhook deliveries. The signature is
// verified over the raw body before any byte of it is interpreted.
type WebhookHandler struct {
	service *service.WebhookService
	secret  string
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(svc *service.WebhookService, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: svc,
		secret:  secret,
		logger:  logger,
	}
}

// HandleWebhook handles POST /webhooks/gateway
//
// Verified events are always acknowledged with 200 even when local
// reconciliation fails; the failure is logged and the gateway's retry will
// land on an idempotent handler. Returning 5xx here would make the gateway
// hammer an endpoint that already has the event.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("unreadable request body"), h.logger)
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if !gateway.VerifySignature(body, signature, h.secret) {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			slog.String("remote_addr", r.RemoteAddr),
		)
		httputil.WriteError(w, r, apperrors.SignatureInvalid(), h.logger)
		return
	}

	ev, err := domain.ParseGatewayEvent(body)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("malformed event payload"), h.logger)
		return
	}

	if err := h.service.HandleEvent(r.Context(), ev); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook reconciliation failed",
			slog.String("event_type", ev.Type),
			slog.String("order_id", ev.OrderID()),
			slog.String("error", err.Error()),
		)
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "accepted"}})
}
