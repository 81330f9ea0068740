package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/fjod/go_cart/settlement-service/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxResponseBody caps how much of a gateway response is read.
const maxResponseBody = 1 << 20

type Credentials struct {
	MerchantID string
	PublicKey  string
	PrivateKey string
}

// Client is the process-wide handle to the payment gateway. It is built once
// at startup and shared by the token issuer and the submitter; nothing on it
// is mutated after New returns.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	breaker *circuitbreaker.Breaker[*rawResponse]
}

type rawResponse struct {
	status int
	body   []byte
}

// TransportError is returned when no HTTP response was observed.
// Sent is false only when the connection was never established, so the
// gateway cannot have seen the request.
type TransportError struct {
	Op   string
	Sent bool
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx reply that is not a business rejection.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway %s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.Code, e.Message)
}

// MalformedResponseError is a reply whose body could not be decoded.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("gateway %s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func NewClient(baseURL string, creds Credentials, log *zap.Logger) *Client {
	return NewClientWithBreaker(baseURL, creds, circuitbreaker.DefaultConfig("payment-gateway"), log)
}

func NewClientWithBreaker(baseURL string, creds Credentials, cfg circuitbreaker.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		// per-call deadlines come from the caller's context
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[*rawResponse](cfg, log, countsAgainstGateway),
	}
}

// countsAgainstGateway decides which errors trip the breaker. Business
// rejections never reach here as errors. A 409 means an earlier sale with the
// same key is still being processed, which says nothing about gateway health.
func countsAgainstGateway(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code != http.StatusConflict
	}
	return true
}

// isBusinessRejection reports whether a status carries a decision about the
// payment itself rather than about the request or the gateway.
func isBusinessRejection(status int) bool {
	return status == http.StatusPaymentRequired || status == http.StatusUnprocessableEntity
}

func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// GenerateClientToken asks the gateway for a client token for the widget.
func (c *Client) GenerateClientToken(ctx context.Context) (string, error) {
	const op = "client_token"

	raw, err := c.post(ctx, op, ClientTokenPath, struct{}{}, "")
	if err != nil {
		return "", err
	}
	if raw.status/100 != 2 {
		return "", &StatusError{Op: op, Code: raw.status, Message: errorMessage(raw.body)}
	}

	var resp ClientTokenResponse
	if err := json.Unmarshal(raw.body, &resp); err != nil {
		return "", &MalformedResponseError{Op: op, Err: err}
	}
	if resp.ClientToken == "" {
		return "", &MalformedResponseError{Op: op, Err: errors.New("empty client token")}
	}
	return resp.ClientToken, nil
}

// Sale submits one sale transaction. A 402 or 422 business rejection is
// returned as a SaleResponse with Success false, not as an error. Every other
// non-2xx reply is a *StatusError.
func (c *Client) Sale(ctx context.Context, req SaleRequest, idempotencyKey string) (*SaleResponse, error) {
	const op = "sale"

	raw, err := c.post(ctx, op, TransactionSalePath, req, idempotencyKey)
	if err != nil {
		return nil, err
	}

	if isBusinessRejection(raw.status) {
		var resp SaleResponse
		if err := json.Unmarshal(raw.body, &resp); err != nil || resp.Message == "" {
			resp = SaleResponse{Message: errorMessage(raw.body)}
		}
		resp.Success = false
		if resp.Message == "" {
			resp.Message = http.StatusText(raw.status)
		}
		return &resp, nil
	}
	// success must be stated, never inferred from a 2xx
	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(raw.body, &probe); err != nil {
		return nil, &MalformedResponseError{Op: op, Err: err}
	}
	if probe.Success == nil {
		return nil, &MalformedResponseError{Op: op, Err: errors.New("response does not state success")}
	}

	var resp SaleResponse
	if err := json.Unmarshal(raw.body, &resp); err != nil {
		return nil, &MalformedResponseError{Op: op, Err: err}
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, op, path string, body any, idempotencyKey string) (*rawResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: encode request: %w", op, err)
	}

	return c.breaker.Execute(func() (*rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set(MerchantIDHeader, c.creds.MerchantID)
		req.SetBasicAuth(c.creds.PublicKey, c.creds.PrivateKey)
		if idempotencyKey != "" {
			req.Header.Set(IdempotencyKeyHeader, idempotencyKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &TransportError{Op: op, Sent: !isDialError(err), Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, &TransportError{Op: op, Sent: true, Err: err}
		}

		if resp.StatusCode/100 != 2 && !isBusinessRejection(resp.StatusCode) {
			return nil, &StatusError{Op: op, Code: resp.StatusCode, Message: errorMessage(data)}
		}
		return &rawResponse{status: resp.StatusCode, body: data}, nil
	})
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func errorMessage(body []byte) string {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		return e.Message
	}
	return ""
}
