// Package sandbox is a stand-in for the payment gateway's REST API, used for
// local development and end-to-end tests. It never moves money.
package sandbox

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultReplayLimit bounds how many idempotency keys the sandbox remembers.
// The oldest key is forgotten first.
const defaultReplayLimit = 10000

type Server struct {
	decisions DecisionSource
	creds     gateway.Credentials
	log       *zap.Logger

	mu          sync.Mutex
	replays     map[string]replay
	replayOrder []string
	replayLimit int
}

type replay struct {
	status int
	body   gateway.SaleResponse
}

type Option func(*Server)

// WithReplayLimit caps the number of remembered idempotency keys.
func WithReplayLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.replayLimit = n
		}
	}
}

func NewServer(decisions DecisionSource, creds gateway.Credentials, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		decisions:   decisions,
		creds:       creds,
		log:         log,
		replays:     make(map[string]replay),
		replayLimit: defaultReplayLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// remember stores a replay under key, evicting the oldest once the limit is
// reached. Callers hold s.mu.
func (s *Server) remember(key string, r replay) {
	if len(s.replayOrder) >= s.replayLimit {
		oldest := s.replayOrder[0]
		s.replayOrder = s.replayOrder[1:]
		delete(s.replays, oldest)
	}
	s.replays[key] = r
	s.replayOrder = append(s.replayOrder, key)
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.BasicAuth("gateway-sandbox", map[string]string{s.creds.PublicKey: s.creds.PrivateKey}))
	r.Use(s.requireMerchant)

	r.Post(gateway.ClientTokenPath, s.handleClientToken)
	r.Post(gateway.TransactionSalePath, s.handleSale)
	return r
}

func (s *Server) requireMerchant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(gateway.MerchantIDHeader) != s.creds.MerchantID {
			writeJSON(w, http.StatusForbidden, gateway.ErrorResponse{Message: "unknown merchant"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleClientToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, gateway.ClientTokenResponse{
		ClientToken: "sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	})
}

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	var req gateway.SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.ErrorResponse{Message: "malformed request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		writeJSON(w, http.StatusUnprocessableEntity, gateway.ErrorResponse{Message: "Amount is an invalid format."})
		return
	}
	if req.PaymentMethodNonce == "" {
		writeJSON(w, http.StatusUnprocessableEntity, gateway.ErrorResponse{Message: "Unknown payment_method_nonce."})
		return
	}

	key := r.Header.Get(gateway.IdempotencyKeyHeader)

	// held across decide and store so a duplicate key can never charge twice
	s.mu.Lock()
	if prev, ok := s.replays[key]; ok && key != "" {
		s.mu.Unlock()
		s.log.Info("replaying sale", zap.String("idempotency_key", key))
		writeJSON(w, prev.status, prev.body)
		return
	}

	d := s.decisions.Decide(req.PaymentMethodNonce)
	if d.Fail {
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, gateway.ErrorResponse{Message: "processor network unavailable"})
		return
	}

	txn := &gateway.Transaction{
		ID:                    strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Amount:                amount.StringFixed(2),
		ProcessorResponseCode: d.Code,
		ProcessorResponseText: d.Text,
	}
	resp := gateway.SaleResponse{Success: d.Approved, Transaction: txn}
	switch {
	case d.Approved && req.Options.SubmitForSettlement:
		txn.Status = "submitted_for_settlement"
	case d.Approved:
		txn.Status = "authorized"
	case d.Status != "":
		txn.Status = d.Status
		resp.Message = d.Text
	default:
		txn.Status = "processor_declined"
		resp.Message = d.Text
	}

	if key != "" {
		s.remember(key, replay{status: http.StatusOK, body: resp})
	}
	s.mu.Unlock()

	s.log.Info("sale processed",
		zap.String("transaction_id", txn.ID),
		zap.String("amount", txn.Amount),
		zap.String("status", txn.Status))
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
