package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// UserIDHeader is set by the upstream auth proxy after it validated the
// buyer's session.
const UserIDHeader = "X-User-ID"

type ctxKey int

const buyerIDKey ctxKey = iota

// AuthMiddleware puts the authenticated buyer id into the request context.
// Requests without one are passed through; handlers reject them.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buyerID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if buyerID == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithBuyerID(r.Context(), buyerID)))
	})
}

func WithBuyerID(ctx context.Context, buyerID string) context.Context {
	return context.WithValue(ctx, buyerIDKey, buyerID)
}

func getBuyerIDFromContext(ctx context.Context) string {
	if buyerID, ok := ctx.Value(buyerIDKey).(string); ok {
		return buyerID
	}
	return ""
}

// LoggerMiddleware stores a request-scoped logger carrying the chi request id.
func LoggerMiddleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		})
	}
}
