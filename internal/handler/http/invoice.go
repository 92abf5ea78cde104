package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solstice-labs/commerce-core/internal/service"
	"github.com/solstice-labs/commerce-core/pkg/httputil"
	"github.com/solstice-labs/commerce-core/pkg/middleware"
)

// InvoiceHandler handles HTTP requests for invoice endpoints.
type InvoiceHandler struct {
	service *service.InvoiceService
	logger  *slog.Logger
}

// NewInvoiceHandler creates a new invoice HTTP handler.
func NewInvoiceHandler(svc *service.InvoiceService, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: svc,
		logger:  logger,
	}
}

// GetInvoice handles GET /api/v1/orders/{id}/invoice
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())

	inv, err := h.service.GetInvoice(r.Context(), userID, role, id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: inv})
}

// RegenerateInvoice handles POST /api/v1/orders/{id}/invoice/regenerate
// Admin only; enforced by route middleware.
func (h *InvoiceHandler) RegenerateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	inv, err := h.service.Regenerate(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: inv})
}
