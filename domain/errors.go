package domain

import "errors"

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrUnresolvableProduct = errors.New("cart references a product that cannot be priced")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrDeclined            = errors.New("payment declined")
	ErrRecordingFailure    = errors.New("order could not be recorded after settlement")
	ErrNonPositiveAmount   = errors.New("charge amount must be greater than zero")
	ErrDuplicateSubmission = errors.New("checkout with this payment is already in progress")
	ErrNotSettled          = errors.New("order can only be recorded from a successful settlement")
	ErrMissingPaymentToken = errors.New("payment method token is required")
	ErrGuardUnavailable    = errors.New("duplicate submission check unavailable")
	IllegalTransitionError = errors.New("illegal transition of checkout state")
)
