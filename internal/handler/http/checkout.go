package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/solstice-labs/commerce-core/internal/domain"
	"github.com/solstice-labs/commerce-core/internal/service"
	"github.com/solstice-labs/commerce-core/pkg/httputil"
	"github.com/solstice-labs/commerce-core/pkg/middleware"
	"github.com/solstice-labs/commerce-core/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// CheckoutRequest is the JSON request body for placing an order. Prices are
// deliberately absent; the server recomputes them.
type CheckoutRequest struct {
	ShippingAddress *domain.Address `json:"shipping_address" validate:"required"`
	CouponCode      string          `json:"coupon_code" validate:"omitempty,max=64"`
	Currency        string          `json:"currency" validate:"required,len=3"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())

	result, err := h.service.Checkout(r.Context(), userID, &service.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		CouponCode:      req.CouponCode,
		Currency:        req.Currency,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}
