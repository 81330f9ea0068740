package gateway

// Wire types of the gateway's REST API. The sandbox server in
// internal/gateway/sandbox speaks the same shapes.

const (
	ClientTokenPath      = "/v1/client_token"
	TransactionSalePath  = "/v1/transactions/sale"
	IdempotencyKeyHeader = "Idempotency-Key"
	MerchantIDHeader     = "X-Merchant-ID"
)

type ClientTokenResponse struct {
	ClientToken string `json:"client_token"`
}

type SaleRequest struct {
	Amount             string      `json:"amount"`
	PaymentMethodNonce string      `json:"payment_method_nonce"`
	Options            SaleOptions `json:"options"`
}

type SaleOptions struct {
	SubmitForSettlement bool `json:"submit_for_settlement"`
}

type SaleResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

type Transaction struct {
	ID                    string `json:"id"`
	Amount                string `json:"amount"`
	Status                string `json:"status"`
	ProcessorResponseCode string `json:"processor_response_code,omitempty"`
	ProcessorResponseText string `json:"processor_response_text,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
