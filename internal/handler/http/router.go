package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solstice-labs/commerce-core/internal/service"
	"github.com/solstice-labs/commerce-core/pkg/health"
	"github.com/solstice-labs/commerce-core/pkg/middleware"
)

// RouterConfig bundles the dependencies the router wires together.
type RouterConfig struct {
	CheckoutService *service.CheckoutService
	OrderService    *service.OrderService
	InvoiceService  *service.InvoiceService
	WebhookService  *service.WebhookService
	HealthHandler   *health.Handler
	TokenValidator  middleware.TokenValidator
	WebhookSecret   string
	CORS            middleware.CORSConfig
	Logger          *slog.Logger
}

// NewRouter creates a chi router with all routes registered. The webhook
// endpoint sits outside the authenticated API surface; it is protected by
// signature verification instead of bearer tokens.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("commerce"))
	r.Use(middleware.Tracing("commerce"))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Gateway webhook endpoint
	webhookHandler := NewWebhookHandler(cfg.WebhookService, cfg.WebhookSecret, cfg.Logger)
	r.Post("/webhooks/gateway", webhookHandler.HandleWebhook)

	// Authenticated API endpoints
	checkoutHandler := NewCheckoutHandler(cfg.CheckoutService, cfg.Logger)
	orderHandler := NewOrderHandler(cfg.OrderService, cfg.Logger)
	invoiceHandler := NewInvoiceHandler(cfg.InvoiceService, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.TokenValidator))
		r.Use(ContentTypeJSON)

		r.Post("/checkout", checkoutHandler.Checkout)

		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", orderHandler.GetOrder)
			r.Get("/invoice", invoiceHandler.GetInvoice)

			r.With(middleware.RequireRole(service.RoleAdmin)).
				Post("/invoice/regenerate", invoiceHandler.RegenerateInvoice)
		})
	})

	return r
}
