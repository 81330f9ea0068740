package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/pkg/circuitbreaker"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/fjod/go_cart/settlement-service/pkg/metrics"
	"go.uber.org/zap"
)

type SaleCaller interface {
	Sale(ctx context.Context, req SaleRequest, idempotencyKey string) (*SaleResponse, error)
}

// Charge is one request to move money. AttemptID doubles as the gateway
// idempotency key.
type Charge struct {
	AttemptID          string
	BuyerID            string
	Amount             domain.Cents
	PaymentMethodToken string
}

// Submitter turns a computed charge into exactly one gateway sale call.
type Submitter struct {
	gateway SaleCaller
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewSubmitter(gateway SaleCaller, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Submitter{gateway: gateway, timeout: timeout, log: log, metrics: m}
}

// Submit charges the buyer. The returned error is non-nil only when the
// charge was rejected before any network call; every gateway outcome is
// carried by the SettlementResult.
func (s *Submitter) Submit(ctx context.Context, charge Charge) (domain.SettlementResult, error) {
	if charge.Amount <= 0 {
		return domain.SettlementResult{}, domain.ErrNonPositiveAmount
	}
	if charge.PaymentMethodToken == "" {
		return domain.SettlementResult{}, domain.ErrMissingPaymentToken
	}

	log := logger.FromContext(ctx, s.log).With(
		zap.String("attempt_id", charge.AttemptID),
		zap.String("buyer_id", charge.BuyerID),
		zap.Int64("amount_cents", int64(charge.Amount)),
		zap.String("payment_token", Fingerprint(charge.PaymentMethodToken)),
	)

	// A buyer closing the tab must not abandon a charge that is already on
	// the wire, so only the gateway timeout bounds the call.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	req := SaleRequest{
		Amount:             charge.Amount.String(),
		PaymentMethodNonce: charge.PaymentMethodToken,
		Options:            SaleOptions{SubmitForSettlement: true},
	}

	started := time.Now()
	resp, err := s.gateway.Sale(callCtx, req, charge.AttemptID)
	result := s.classify(log, charge, resp, err)
	s.metrics.ObserveGateway("sale", resultLabel(result), started)

	if ctx.Err() != nil {
		log.Warn("caller went away while the sale was in flight",
			zap.String("outcome", result.Outcome.String()))
	}

	switch {
	case result.IsSuccess():
		log.Info("sale settled", zap.String("transaction_id", result.TransactionID))
	case result.Failure.Indeterminate:
		s.metrics.ReconcileGaps.Inc()
		log.Error("sale outcome unknown, reconcile with gateway",
			zap.String("reason", result.Failure.Message), zap.Error(err))
	case result.Failure.Kind == domain.FailureDeclined:
		log.Info("sale declined",
			zap.String("reason", result.Failure.Message),
			zap.String("processor_code", result.Failure.ProcessorCode))
	default:
		log.Warn("sale not attempted or rejected by gateway infrastructure",
			zap.String("reason", result.Failure.Message), zap.Error(err))
	}

	return result, nil
}

func (s *Submitter) classify(log *zap.Logger, charge Charge, resp *SaleResponse, err error) domain.SettlementResult {
	if err != nil {
		return classifyError(err)
	}
	if resp == nil {
		return domain.Unavailable("empty gateway response", true)
	}

	if !resp.Success {
		msg := resp.Message
		code := ""
		if resp.Transaction != nil {
			code = resp.Transaction.ProcessorResponseCode
			if msg == "" {
				msg = resp.Transaction.ProcessorResponseText
			}
		}
		if msg == "" {
			msg = "declined by gateway"
		}
		return domain.Declined(msg, code)
	}

	if resp.Transaction == nil || resp.Transaction.ID == "" {
		return domain.Unavailable("gateway reported success without a transaction", true)
	}

	settled := charge.Amount
	if resp.Transaction.Amount != "" {
		amt, perr := domain.ParseCents(resp.Transaction.Amount)
		switch {
		case perr != nil:
			log.Warn("unreadable settled amount, keeping submitted amount",
				zap.String("transaction_id", resp.Transaction.ID),
				zap.String("gateway_amount", resp.Transaction.Amount),
				zap.Error(perr))
		case amt != charge.Amount:
			log.Warn("suspicious settlement: gateway amount differs from charge",
				zap.String("transaction_id", resp.Transaction.ID),
				zap.Int64("settled_cents", int64(amt)))
			settled = amt
		default:
			settled = amt
		}
	}
	return domain.Settled(resp.Transaction.ID, settled)
}

func classifyError(err error) domain.SettlementResult {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return domain.Unavailable("gateway circuit open", false)
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Unavailable("gateway timed out", transportErr.Sent)
		}
		return domain.Unavailable("gateway unreachable", transportErr.Sent)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.Code; {
		case code >= http.StatusInternalServerError:
			return domain.Unavailable("gateway error "+http.StatusText(code), true)
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return domain.Unavailable("gateway rejected merchant credentials", false)
		case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
			return domain.Unavailable("gateway busy, retry later", false)
		case code == http.StatusConflict:
			// an earlier sale with this key is still in flight and may settle
			return domain.Unavailable("sale already in progress at gateway", true)
		default:
			return domain.Unavailable("gateway refused request: "+http.StatusText(code), false)
		}
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return domain.Unavailable("malformed gateway response", true)
	}

	return domain.Unavailable(err.Error(), true)
}

func resultLabel(r domain.SettlementResult) string {
	if r.IsSuccess() {
		return "settled"
	}
	if r.Failure != nil && r.Failure.Kind == domain.FailureDeclined {
		return "declined"
	}
	return "unavailable"
}

// Fingerprint is a short stable digest of a payment token, safe to log.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}
