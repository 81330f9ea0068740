package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/service"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// maxCartLines bounds the catalog lookup a single checkout can trigger.
const maxCartLines = 1000

type ClientTokenIssuer interface {
	IssueClientToken(ctx context.Context) (string, error)
}

type CheckoutHandler struct {
	checkout    service.CheckoutService
	tokens      ClientTokenIssuer
	timeout     time.Duration
	maxBodySize int64
}

func NewCheckoutHandler(checkout service.CheckoutService, tokens ClientTokenIssuer, timeout time.Duration, maxBodySize int64) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:    checkout,
		tokens:      tokens,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type CheckoutRequestDTO struct {
	PaymentMethodToken string       `json:"paymentMethodToken"`
	Cart               []d.CartLine `json:"cart"`
}

type CheckoutResponseDTO struct {
	Success bool `json:"success"`
}

type ClientTokenResponseDTO struct {
	ClientToken string `json:"clientToken"`
}

// POST /api/v1/checkout/token
func (h *CheckoutHandler) IssueClientToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if getBuyerIDFromContext(r.Context()) == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	token, err := h.tokens.IssueClientToken(ctx)
	if err != nil {
		logger.FromContext(ctx, nil).Warn("client token not issued", zap.Error(err))
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ClientTokenResponseDTO{ClientToken: token})
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerIDFromContext(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if len(req.Cart) == 0 {
		handleCheckoutError(w, d.ErrEmptyCart)
		return
	}
	if len(req.Cart) > maxCartLines {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("cart may hold at most %d lines", maxCartLines))
		return
	}
	if strings.TrimSpace(req.PaymentMethodToken) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "paymentMethodToken is required")
		return
	}

	_, err := h.checkout.Checkout(ctx, &d.CheckoutRequest{
		BuyerID:            buyerID,
		PaymentMethodToken: req.PaymentMethodToken,
		Cart:               req.Cart,
		IdempotencyKey:     strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResponseDTO{Success: true})
}
