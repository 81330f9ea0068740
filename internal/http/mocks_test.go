package http

import (
	"context"

	d "github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/google/uuid"
)

type CheckoutServiceMock struct {
	result   *d.CheckoutResult
	err      error
	requests []*d.CheckoutRequest
}

func (m *CheckoutServiceMock) Checkout(_ context.Context, req *d.CheckoutRequest) (*d.CheckoutResult, error) {
	m.requests = append(m.requests, req)
	return m.result, m.err
}

type TokenIssuerMock struct {
	token string
	err   error
}

func (m TokenIssuerMock) IssueClientToken(context.Context) (string, error) {
	return m.token, m.err
}

type OrderReaderMock struct {
	orders []*d.Order
	err    error
}

func (m OrderReaderMock) GetOrderByID(_ context.Context, id uuid.UUID) (*d.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m OrderReaderMock) ListOrdersByBuyer(_ context.Context, buyerID string) ([]*d.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*d.Order
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}
