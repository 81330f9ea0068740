package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCheckoutBody = `{"paymentMethodToken":"fake-valid-nonce","cart":[{"productId":"p1","price":12.0},{"productId":"p2"}]}`

func withBuyer(r *http.Request) *http.Request {
	return r.WithContext(WithBuyerID(r.Context(), "buyer-1"))
}

func newCheckoutHandler(svc *CheckoutServiceMock, tokens TokenIssuerMock) *CheckoutHandler {
	return NewCheckoutHandler(svc, tokens, 5*time.Second, 1<<20)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCheckout_Success(t *testing.T) {
	svc := &CheckoutServiceMock{result: &d.CheckoutResult{TransactionID: "txn_1", Recorded: true}}
	handler := newCheckoutHandler(svc, TokenIssuerMock{})

	req := withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(validCheckoutBody)))
	req.Header.Set(IdempotencyKeyHeader, " key-1 ")
	rec := httptest.NewRecorder()

	handler.Checkout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	require.Len(t, svc.requests, 1)
	got := svc.requests[0]
	assert.Equal(t, "buyer-1", got.BuyerID)
	assert.Equal(t, "fake-valid-nonce", got.PaymentMethodToken)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	require.Len(t, got.Cart, 2)
	assert.Equal(t, "p1", got.Cart[0].ProductID)
	require.NotNil(t, got.Cart[0].ClientPrice)
	assert.Nil(t, got.Cart[1].ClientPrice)
}

func TestCheckout_RecordingFailureLooksLikeSuccess(t *testing.T) {
	svc := &CheckoutServiceMock{result: &d.CheckoutResult{TransactionID: "txn_1", Recorded: false}}
	handler := newCheckoutHandler(svc, TokenIssuerMock{})

	rec := httptest.NewRecorder()
	handler.Checkout(rec, withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(validCheckoutBody))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestCheckout_Unauthorized(t *testing.T) {
	svc := &CheckoutServiceMock{}
	handler := newCheckoutHandler(svc, TokenIssuerMock{})

	rec := httptest.NewRecorder()
	handler.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(validCheckoutBody)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
	assert.Empty(t, svc.requests)
}

func TestCheckout_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{"paymentMethodToken":`},
		{name: "missing token", body: `{"cart":[{"productId":"p1"}]}`},
		{name: "blank token", body: `{"paymentMethodToken":"  ","cart":[{"productId":"p1"}]}`},
		{name: "body too large", body: fmt.Sprintf(`{"paymentMethodToken":"%s"}`, strings.Repeat("x", 2<<20))},
		{name: "too many lines", body: `{"paymentMethodToken":"nonce","cart":[` + strings.Repeat(`{"productId":"p1"},`, maxCartLines) + `{"productId":"p1"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &CheckoutServiceMock{}
			handler := newCheckoutHandler(svc, TokenIssuerMock{})

			rec := httptest.NewRecorder()
			handler.Checkout(rec, withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(tt.body))))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rec).Code)
			assert.Empty(t, svc.requests)
		})
	}
}

func TestCheckout_EmptyCartReportedBeforeMissingToken(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no token, no cart", body: `{}`},
		{name: "blank token, empty cart", body: `{"paymentMethodToken":"","cart":[]}`},
		{name: "valid token, empty cart", body: `{"paymentMethodToken":"fake-valid-nonce","cart":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &CheckoutServiceMock{}
			handler := newCheckoutHandler(svc, TokenIssuerMock{})

			rec := httptest.NewRecorder()
			handler.Checkout(rec, withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(tt.body))))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "empty_cart", decodeError(t, rec).Code)
			assert.Empty(t, svc.requests)
		})
	}
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty cart", d.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{"free cart", fmt.Errorf("%w: every item is free", d.ErrEmptyCart), http.StatusBadRequest, "empty_cart"},
		{"unknown product", &service.UnresolvableProductError{IDs: []string{"ghost"}}, http.StatusUnprocessableEntity, "unresolvable_product"},
		{"declined", d.Declined("Insufficient Funds", "2001").Err(), http.StatusPaymentRequired, "declined"},
		{"gateway unavailable", d.Unavailable("timeout", true).Err(), http.StatusServiceUnavailable, "gateway_unavailable"},
		{"duplicate", d.ErrDuplicateSubmission, http.StatusConflict, "duplicate_submission"},
		{"guard down", d.ErrGuardUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"missing token", d.ErrMissingPaymentToken, http.StatusBadRequest, "invalid_request"},
		{"unexpected", errors.New("failed to look up prices: disk I/O error"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newCheckoutHandler(&CheckoutServiceMock{err: tt.err}, TokenIssuerMock{})

			rec := httptest.NewRecorder()
			handler.Checkout(rec, withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(validCheckoutBody))))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotContains(t, resp.Error, "disk I/O")
		})
	}
}

func TestCheckout_DeclineCarriesProcessorMessage(t *testing.T) {
	handler := newCheckoutHandler(&CheckoutServiceMock{err: d.Declined("Insufficient Funds", "2001").Err()}, TokenIssuerMock{})

	rec := httptest.NewRecorder()
	handler.Checkout(rec, withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(validCheckoutBody))))

	assert.Equal(t, "Insufficient Funds", decodeError(t, rec).Details)
}

func TestIssueClientToken_Success(t *testing.T) {
	handler := newCheckoutHandler(&CheckoutServiceMock{}, TokenIssuerMock{token: "sandbox_abc"})

	rec := httptest.NewRecorder()
	handler.IssueClientToken(rec, withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/token", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clientToken":"sandbox_abc"}`, rec.Body.String())
}

func TestIssueClientToken_GatewayDown(t *testing.T) {
	handler := newCheckoutHandler(&CheckoutServiceMock{}, TokenIssuerMock{err: fmt.Errorf("%w: status 500", d.ErrGatewayUnavailable)})

	rec := httptest.NewRecorder()
	handler.IssueClientToken(rec, withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/token", nil)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "gateway_unavailable", decodeError(t, rec).Code)
}

func TestIssueClientToken_Unauthorized(t *testing.T) {
	handler := newCheckoutHandler(&CheckoutServiceMock{}, TokenIssuerMock{token: "sandbox_abc"})

	rec := httptest.NewRecorder()
	handler.IssueClientToken(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/token", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
