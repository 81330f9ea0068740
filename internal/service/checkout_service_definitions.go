package service

import (
	"context"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/fjod/go_cart/settlement-service/pkg/metrics"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Checkout(ctx context.Context, request *d.CheckoutRequest) (*d.CheckoutResult, error)
}

type PriceLookup interface {
	GetPrices(ctx context.Context, ids []string) (map[string]d.Cents, error)
}

type SettlementSubmitter interface {
	Submit(ctx context.Context, charge gateway.Charge) (d.SettlementResult, error)
}

type OrderWriter interface {
	CreateOrder(ctx context.Context, order *d.Order) error
}

// SubmissionGuard prevents one cart from being charged twice by overlapping
// or repeated submissions.
//
// Acquire returns the stored result when the key already completed,
// d.ErrDuplicateSubmission when it is still in flight, and nil when the
// caller now owns the key.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string) (*d.CheckoutResult, error)
	Complete(ctx context.Context, key string, result *d.CheckoutResult) error
	Release(ctx context.Context, key string) error
}

type CheckoutServiceImpl struct {
	calculator        *ChargeCalculator
	submitter         SettlementSubmitter
	recorder          *OrderRecorder
	guard             SubmissionGuard
	orderWriteTimeout time.Duration
	log               *zap.Logger
	metrics           *metrics.Metrics
}

type Option func(*CheckoutServiceImpl)

func WithGuard(g SubmissionGuard) Option {
	return func(s *CheckoutServiceImpl) { s.guard = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *CheckoutServiceImpl) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CheckoutServiceImpl) { s.metrics = m }
}

func WithOrderWriteTimeout(t time.Duration) Option {
	return func(s *CheckoutServiceImpl) { s.orderWriteTimeout = t }
}

func NewCheckoutService(
	calculator *ChargeCalculator,
	submitter SettlementSubmitter,
	recorder *OrderRecorder,
	opts ...Option,
) *CheckoutServiceImpl {
	s := &CheckoutServiceImpl{
		calculator:        calculator,
		submitter:         submitter,
		recorder:          recorder,
		guard:             NoopGuard{},
		orderWriteTimeout: 5 * time.Second,
		log:               zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	return s
}

// NoopGuard admits every submission.
type NoopGuard struct{}

func (NoopGuard) Acquire(context.Context, string) (*d.CheckoutResult, error) { return nil, nil }

func (NoopGuard) Complete(context.Context, string, *d.CheckoutResult) error { return nil }

func (NoopGuard) Release(context.Context, string) error { return nil }
