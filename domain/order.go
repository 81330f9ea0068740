package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

// OrderStatusNotProcessed is the only status this service ever writes; later
// statuses belong to the back office.
const OrderStatusNotProcessed OrderStatus = "NOT_PROCESSED"

type Order struct {
	ID            uuid.UUID
	BuyerID       string
	Lines         []PricedLine
	TransactionID string
	Amount        Cents
	Status        OrderStatus
	CreatedAt     time.Time
}
