package domain

type CheckoutState string

const (
	CheckoutStatePricing    CheckoutState = "PRICING"
	CheckoutStateSubmitting CheckoutState = "SUBMITTING"
	CheckoutStateRecording  CheckoutState = "RECORDING"
	CheckoutStateCompleted  CheckoutState = "COMPLETED"
	CheckoutStateDeclined   CheckoutState = "DECLINED"
	CheckoutStateErrored    CheckoutState = "ERRORED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStatePricing:    {CheckoutStateSubmitting, CheckoutStateErrored},
	CheckoutStateSubmitting: {CheckoutStateRecording, CheckoutStateDeclined, CheckoutStateErrored},
	CheckoutStateRecording:  {CheckoutStateCompleted},
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted || s == CheckoutStateDeclined || s == CheckoutStateErrored
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
