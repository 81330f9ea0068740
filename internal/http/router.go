package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/settlement-service/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Checkout       *CheckoutHandler
	Orders         *OrdersHandler
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Log            *zap.Logger
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware)
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", cfg.Checkout.Checkout)
			r.Post("/token", cfg.Checkout.IssueClientToken)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", cfg.Orders.ListOrders)
			r.Get("/{order_id}", cfg.Orders.GetOrder)
		})
	})

	return r
}
