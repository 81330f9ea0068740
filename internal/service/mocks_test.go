package service

import (
	"context"
	"sync"
	"time"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/fjod/go_cart/settlement-service/pkg/metrics"
)

// MockCatalog implements PriceLookup for testing
type MockCatalog struct {
	Prices   map[string]d.Cents
	Err      error
	Calls    int
	LookedUp []string
}

func (m *MockCatalog) GetPrices(_ context.Context, ids []string) (map[string]d.Cents, error) {
	m.Calls++
	m.LookedUp = append(m.LookedUp, ids...)
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]d.Cents, len(ids))
	for _, id := range ids {
		if p, ok := m.Prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// MockSubmitter implements SettlementSubmitter for testing
type MockSubmitter struct {
	Result   d.SettlementResult
	Err      error
	Charges  []gateway.Charge
	OnSubmit func()
}

func (m *MockSubmitter) Submit(_ context.Context, charge gateway.Charge) (d.SettlementResult, error) {
	m.Charges = append(m.Charges, charge)
	if m.OnSubmit != nil {
		m.OnSubmit()
	}
	return m.Result, m.Err
}

// MockOrderStore implements OrderWriter for testing
type MockOrderStore struct {
	Err         error
	Orders      []*d.Order
	CtxErr      error
	HadDeadline bool
}

func (m *MockOrderStore) CreateOrder(ctx context.Context, order *d.Order) error {
	m.CtxErr = ctx.Err()
	_, m.HadDeadline = ctx.Deadline()
	if m.Err != nil {
		return m.Err
	}
	m.Orders = append(m.Orders, order)
	return nil
}

// MockGuard implements SubmissionGuard for testing
type MockGuard struct {
	mu         sync.Mutex
	AcquireErr error
	Prior      *d.CheckoutResult
	Keys       []string
	Completed  map[string]*d.CheckoutResult
	Released   []string
}

func (m *MockGuard) Acquire(_ context.Context, key string) (*d.CheckoutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keys = append(m.Keys, key)
	return m.Prior, m.AcquireErr
}

func (m *MockGuard) Complete(_ context.Context, key string, result *d.CheckoutResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Completed == nil {
		m.Completed = make(map[string]*d.CheckoutResult)
	}
	m.Completed[key] = result
	return nil
}

func (m *MockGuard) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released = append(m.Released, key)
	return nil
}

type testDeps struct {
	catalog   *MockCatalog
	submitter *MockSubmitter
	store     *MockOrderStore
	guard     *MockGuard
	metrics   *metrics.Metrics
}

// newTestCheckoutService creates a fully wired CheckoutService for testing
func newTestCheckoutService(deps *testDeps) *CheckoutServiceImpl {
	if deps.catalog == nil {
		deps.catalog = &MockCatalog{}
	}
	if deps.submitter == nil {
		deps.submitter = &MockSubmitter{}
	}
	if deps.store == nil {
		deps.store = &MockOrderStore{}
	}
	if deps.guard == nil {
		deps.guard = &MockGuard{}
	}
	if deps.metrics == nil {
		deps.metrics = metrics.Nop()
	}
	return NewCheckoutService(
		NewChargeCalculator(deps.catalog),
		deps.submitter,
		NewOrderRecorder(deps.store, nil, deps.metrics),
		WithGuard(deps.guard),
		WithMetrics(deps.metrics),
		WithOrderWriteTimeout(time.Second),
	)
}
