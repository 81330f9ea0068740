package domain

type CheckoutRequest struct {
	BuyerID            string
	PaymentMethodToken string
	Cart               []CartLine
	IdempotencyKey     string
}

// CheckoutResult is what the caller learns about a successful attempt. Recorded
// is false when the gateway charged but the order write failed; the attempt is
// still a success from the buyer's point of view.
type CheckoutResult struct {
	AttemptID     string `json:"attempt_id"`
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id,omitempty"`
	Amount        Cents  `json:"amount"`
	Recorded      bool   `json:"recorded"`
	Replayed      bool   `json:"-"`
}
