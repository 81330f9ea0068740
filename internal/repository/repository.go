package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateTransaction = errors.New("order for this transaction already exists")
)

const EventTypeOrderCreated = "OrderCreated"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
	Close() error
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// OrderCreatedEvent is the outbox payload published for every new order.
type OrderCreatedEvent struct {
	OrderID       string              `json:"order_id"`
	BuyerID       string              `json:"buyer_id"`
	TransactionID string              `json:"transaction_id"`
	AmountCents   int64               `json:"amount_cents"`
	Amount        string              `json:"amount"`
	Lines         []domain.PricedLine `json:"lines"`
	Status        domain.OrderStatus  `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

func NewOrderCreatedEvent(order *domain.Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:       order.ID.String(),
		BuyerID:       order.BuyerID,
		TransactionID: order.TransactionID,
		AmountCents:   int64(order.Amount),
		Amount:        order.Amount.String(),
		Lines:         order.Lines,
		Status:        order.Status,
		CreatedAt:     order.CreatedAt,
	}
}
