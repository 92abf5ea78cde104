package middleware

import (
	"log/slog"
	"net/http"

	"github.com/solstice-labs/commerce-core/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context, enriched with
// correlation_id, user_id, trace_id, and span_id. Handlers pick it up with
// logger.FromContext. Mount after RequestLogging (correlation ID), Tracing
// (span context), and Auth (user identity).
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Services that sit behind the gateway trust X-User-ID instead
			// of running Auth themselves.
			userID := UserIDFromContext(ctx)
			if userID == "" {
				userID = r.Header.Get(headerUserID)
			}
			if userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
