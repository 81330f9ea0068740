package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const guardCallTimeout = 2 * time.Second

// attempt tracks one pass through the checkout state machine. Nothing about
// it is persisted; the order row is the only durable trace of a checkout.
type attempt struct {
	id    string
	state d.CheckoutState
	log   *zap.Logger
}

func (a *attempt) advance(to d.CheckoutState) error {
	if !d.CanTransitionTo(a.state, to) {
		return fmt.Errorf("%w: %s -> %s", d.IllegalTransitionError, a.state, to)
	}
	a.log.Debug("checkout state changed", zap.Stringer("from", a.state), zap.Stringer("to", to))
	a.state = to
	return nil
}

// Checkout prices the cart, charges the buyer once and records the order.
// Once the gateway confirms a charge the call reports success, even if the
// order could not be written.
func (s *CheckoutServiceImpl) Checkout(ctx context.Context, request *d.CheckoutRequest) (*d.CheckoutResult, error) {
	a := &attempt{id: uuid.NewString(), state: d.CheckoutStatePricing}
	a.log = logger.FromContext(ctx, s.log).With(
		zap.String("attempt_id", a.id),
		zap.String("buyer_id", request.BuyerID),
	)

	// pricing is read-only, so a cart that cannot be charged is refused before
	// the guard or the gateway is touched
	amount, lines, err := s.calculator.ComputeCharge(ctx, request.Cart)
	if err != nil {
		a.log.Info("checkout rejected during pricing", zap.Error(err))
		s.finish(a, d.CheckoutStateErrored)
		return nil, err
	}
	a.log = a.log.With(zap.Int64("amount_cents", int64(amount)))

	key := submissionKey(request)
	prior, err := s.guard.Acquire(ctx, key)
	if err != nil {
		a.log.Info("submission refused by guard", zap.Error(err))
		s.finish(a, d.CheckoutStateErrored)
		return nil, err
	}
	if prior != nil {
		replayed := *prior
		replayed.Replayed = true
		a.log.Info("duplicate submission, replaying result",
			zap.String("original_attempt_id", prior.AttemptID),
			zap.String("transaction_id", prior.TransactionID))
		s.metrics.Checkouts.WithLabelValues("replayed").Inc()
		return &replayed, nil
	}

	settlement, err := s.processPayment(ctx, a, request, amount)
	if err != nil {
		s.release(ctx, a, key)
		s.finish(a, d.CheckoutStateErrored)
		return nil, err
	}
	if !settlement.IsSuccess() {
		// an indeterminate charge may still settle; keep the key so a retry
		// cannot charge a second time before the lock expires
		if settlement.Failure == nil || !settlement.Failure.Indeterminate {
			s.release(ctx, a, key)
		}
		s.finish(a, failedState(settlement))
		return nil, settlement.Err()
	}

	if err := a.advance(d.CheckoutStateRecording); err != nil {
		return nil, err
	}
	result := s.complete(ctx, a, request.BuyerID, lines, settlement)
	if err := a.advance(d.CheckoutStateCompleted); err != nil {
		return nil, err
	}
	s.metrics.Checkouts.WithLabelValues(strings.ToLower(d.CheckoutStateCompleted.String())).Inc()

	guardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), guardCallTimeout)
	defer cancel()
	if err := s.guard.Complete(guardCtx, key, result); err != nil {
		a.log.Warn("failed to store checkout result for duplicate detection", zap.Error(err))
	}

	return result, nil
}

func (s *CheckoutServiceImpl) finish(a *attempt, to d.CheckoutState) {
	if err := a.advance(to); err != nil {
		a.log.Error("checkout state machine violated", zap.Error(err))
		return
	}
	s.metrics.Checkouts.WithLabelValues(strings.ToLower(to.String())).Inc()
}

func (s *CheckoutServiceImpl) release(ctx context.Context, a *attempt, key string) {
	guardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), guardCallTimeout)
	defer cancel()
	if err := s.guard.Release(guardCtx, key); err != nil {
		a.log.Warn("failed to release submission guard", zap.Error(err))
	}
}

// submissionKey identifies one buyer's intent to pay. An explicit
// Idempotency-Key wins; otherwise the single-use payment token stands in.
func submissionKey(request *d.CheckoutRequest) string {
	if request.IdempotencyKey != "" {
		return request.BuyerID + ":" + request.IdempotencyKey
	}
	sum := sha256.Sum256([]byte(request.PaymentMethodToken))
	return request.BuyerID + ":" + hex.EncodeToString(sum[:])
}
