package service

import (
	"context"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
)

func (s *CheckoutServiceImpl) processPayment(ctx context.Context, a *attempt, request *d.CheckoutRequest, amount d.Cents) (d.SettlementResult, error) {
	if err := a.advance(d.CheckoutStateSubmitting); err != nil {
		return d.SettlementResult{}, err
	}

	return s.submitter.Submit(ctx, gateway.Charge{
		AttemptID:          a.id,
		BuyerID:            request.BuyerID,
		Amount:             amount,
		PaymentMethodToken: request.PaymentMethodToken,
	})
}

// failedState maps a failed settlement to the terminal state it ends in.
func failedState(result d.SettlementResult) d.CheckoutState {
	if result.Failure != nil && result.Failure.Kind == d.FailureDeclined {
		return d.CheckoutStateDeclined
	}
	return d.CheckoutStateErrored
}
