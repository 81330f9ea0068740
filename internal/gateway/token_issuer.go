package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/fjod/go_cart/settlement-service/pkg/metrics"
	"go.uber.org/zap"
)

type ClientTokenGenerator interface {
	GenerateClientToken(ctx context.Context) (string, error)
}

// TokenIssuer hands out gateway client tokens for the payment widget.
type TokenIssuer struct {
	gateway ClientTokenGenerator
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewTokenIssuer(gateway ClientTokenGenerator, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *TokenIssuer {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &TokenIssuer{gateway: gateway, timeout: timeout, log: log, metrics: m}
}

// IssueClientToken makes exactly one token-generation call. Any failure is
// reported as ErrGatewayUnavailable.
func (t *TokenIssuer) IssueClientToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	started := time.Now()
	token, err := t.gateway.GenerateClientToken(ctx)
	if err != nil {
		t.metrics.ObserveGateway("client_token", "error", started)
		logger.FromContext(ctx, t.log).Warn("client token generation failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if token == "" {
		t.metrics.ObserveGateway("client_token", "error", started)
		return "", fmt.Errorf("%w: empty client token", domain.ErrGatewayUnavailable)
	}

	t.metrics.ObserveGateway("client_token", "ok", started)
	return token, nil
}
