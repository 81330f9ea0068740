package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	r "github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/fjod/go_cart/settlement-service/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderRecorder persists the order for a confirmed charge. It is the only
// writer of orders in this service.
type OrderRecorder struct {
	store   OrderWriter
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOrderRecorder(store OrderWriter, log *zap.Logger, m *metrics.Metrics) *OrderRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &OrderRecorder{store: store, log: log, metrics: m, now: time.Now}
}

func (o *OrderRecorder) RecordOrder(ctx context.Context, buyerID string, lines []d.PricedLine, settlement d.SettlementResult) (*d.Order, error) {
	if !settlement.IsSuccess() {
		return nil, d.ErrNotSettled
	}

	order := &d.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Lines:         append([]d.PricedLine(nil), lines...),
		TransactionID: settlement.TransactionID,
		Amount:        settlement.SettledAmount,
		Status:        d.OrderStatusNotProcessed,
		CreatedAt:     o.now().UTC(),
	}

	log := logger.FromContext(ctx, o.log).With(
		zap.String("transaction_id", order.TransactionID),
		zap.String("buyer_id", buyerID),
		zap.Int64("amount_cents", int64(order.Amount)),
	)

	if err := o.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, r.ErrDuplicateTransaction) {
			log.Warn("order for transaction already recorded")
			return nil, err
		}
		o.metrics.ReconcileGaps.Inc()
		log.Error("charged but order not recorded, reconcile manually", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", d.ErrRecordingFailure, err)
	}

	log.Info("order recorded", zap.String("order_id", order.ID.String()))
	return order, nil
}

// complete records the order on a context detached from the caller: the
// charge already happened, so a disconnect must not cost the order row.
func (s *CheckoutServiceImpl) complete(ctx context.Context, a *attempt, buyerID string, lines []d.PricedLine, settlement d.SettlementResult) *d.CheckoutResult {
	result := &d.CheckoutResult{
		AttemptID:     a.id,
		TransactionID: settlement.TransactionID,
		Amount:        settlement.SettledAmount,
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.orderWriteTimeout)
	defer cancel()

	order, err := s.recorder.RecordOrder(recordCtx, buyerID, lines, settlement)
	switch {
	case err == nil:
		result.OrderID = order.ID.String()
		result.Recorded = true
	case errors.Is(err, r.ErrDuplicateTransaction):
		result.Recorded = true
	}

	if ctx.Err() != nil {
		a.log.Warn("buyer disconnected after the charge settled",
			zap.String("transaction_id", settlement.TransactionID),
			zap.Bool("recorded", result.Recorded))
	}
	return result
}
