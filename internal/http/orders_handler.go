package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderReader is the read side of the order store.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*d.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderLineDTO struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
}

type OrderResponseDTO struct {
	ID            string         `json:"id"`
	TransactionID string         `json:"transaction_id"`
	TotalAmount   string         `json:"total_amount"`
	Status        string         `json:"status"`
	Lines         []OrderLineDTO `json:"lines"`
	CreatedAt     string         `json:"created_at"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		logger.FromContext(ctx, nil).Error("failed to list orders", zap.String("buyer_id", buyerID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}

	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	case err != nil:
		logger.FromContext(ctx, nil).Error("failed to get order", zap.String("order_id", orderID.String()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	// other buyers' orders look the same as missing ones
	if order.BuyerID != buyerID {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

func convertOrder(o *d.Order) OrderResponseDTO {
	lines := make([]OrderLineDTO, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineDTO{
			ProductID: l.ProductID,
			UnitPrice: l.UnitPrice.String(),
		})
	}

	return OrderResponseDTO{
		ID:            o.ID.String(),
		TransactionID: o.TransactionID,
		TotalAmount:   o.Amount.String(),
		Status:        string(o.Status),
		Lines:         lines,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}
