package domain

// Outcome tags a SettlementResult. The zero value is neither success nor
// failure so an uninitialised result can never be mistaken for a charge.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

type FailureKind string

const (
	// FailureDeclined means the gateway answered and refused the charge.
	FailureDeclined FailureKind = "DECLINED"
	// FailureGatewayUnavailable means no definitive answer was obtained.
	FailureGatewayUnavailable FailureKind = "GATEWAY_UNAVAILABLE"
)

type FailureReason struct {
	Kind          FailureKind
	Message       string
	ProcessorCode string
	// Indeterminate is set when the sale request may have reached the gateway
	// but no response was observed; money may have moved.
	Indeterminate bool
}

// SettlementResult is the outcome of exactly one sale call.
type SettlementResult struct {
	Outcome       Outcome
	TransactionID string
	SettledAmount Cents
	Failure       *FailureReason
}

func Settled(transactionID string, amount Cents) SettlementResult {
	return SettlementResult{
		Outcome:       OutcomeSuccess,
		TransactionID: transactionID,
		SettledAmount: amount,
	}
}

func Declined(message, processorCode string) SettlementResult {
	return SettlementResult{
		Outcome: OutcomeFailure,
		Failure: &FailureReason{
			Kind:          FailureDeclined,
			Message:       message,
			ProcessorCode: processorCode,
		},
	}
}

func Unavailable(message string, indeterminate bool) SettlementResult {
	return SettlementResult{
		Outcome: OutcomeFailure,
		Failure: &FailureReason{
			Kind:          FailureGatewayUnavailable,
			Message:       message,
			Indeterminate: indeterminate,
		},
	}
}

func (r SettlementResult) IsSuccess() bool {
	return r.Outcome == OutcomeSuccess && r.TransactionID != ""
}

// Err converts a failed result into the matching sentinel error.
func (r SettlementResult) Err() error {
	if r.IsSuccess() {
		return nil
	}
	if r.Failure != nil && r.Failure.Kind == FailureDeclined {
		return &SettlementError{Kind: ErrDeclined, Reason: *r.Failure}
	}
	reason := FailureReason{Kind: FailureGatewayUnavailable, Message: "no settlement outcome"}
	if r.Failure != nil {
		reason = *r.Failure
	}
	return &SettlementError{Kind: ErrGatewayUnavailable, Reason: reason}
}

// SettlementError carries the gateway's reason alongside the error kind.
type SettlementError struct {
	Kind   error
	Reason FailureReason
}

func (e *SettlementError) Error() string {
	if e.Reason.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Reason.Message
}

func (e *SettlementError) Unwrap() error {
	return e.Kind
}
