package http

import (
	"encoding/json"
	"errors"
	"net/http"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleCheckoutError converts checkout errors to HTTP responses. Gateway and
// storage internals never reach the buyer.
func handleCheckoutError(w http.ResponseWriter, err error) {
	var settlement *d.SettlementError

	switch {
	case errors.Is(err, d.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart has nothing to charge")
	case errors.Is(err, d.ErrUnresolvableProduct):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "cart contains unknown products",
			Code:    "unresolvable_product",
			Details: err.Error(),
		})
	case errors.Is(err, d.ErrDeclined):
		resp := ErrorResponse{Error: "payment declined", Code: "declined"}
		if errors.As(err, &settlement) {
			resp.Details = settlement.Reason.Message
		}
		respondJSON(w, http.StatusPaymentRequired, resp)
	case errors.Is(err, d.ErrGatewayUnavailable):
		respondError(w, http.StatusServiceUnavailable, "gateway_unavailable", "payment gateway unavailable, try again later")
	case errors.Is(err, d.ErrDuplicateSubmission):
		respondError(w, http.StatusConflict, "duplicate_submission", "this checkout is already being processed")
	case errors.Is(err, d.ErrGuardUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "checkout temporarily unavailable")
	case errors.Is(err, d.ErrMissingPaymentToken), errors.Is(err, d.ErrNonPositiveAmount):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
