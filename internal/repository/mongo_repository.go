package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// orderDocument is the stored shape of an order; ids are kept as strings so
// documents stay readable from the mongo shell.
type orderDocument struct {
	ID            string              `bson:"_id"`
	BuyerID       string              `bson:"buyer_id"`
	TransactionID string              `bson:"transaction_id"`
	AmountCents   int64               `bson:"amount_cents"`
	Status        string              `bson:"status"`
	Lines         []domain.PricedLine `bson:"lines"`
	CreatedAt     time.Time           `bson:"created_at"`
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("orders"),
	}
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (m *MongoRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	doc := orderDocument{
		ID:            order.ID.String(),
		BuyerID:       order.BuyerID,
		TransactionID: order.TransactionID,
		AmountCents:   int64(order.Amount),
		Status:        string(order.Status),
		Lines:         order.Lines,
		CreatedAt:     order.CreatedAt,
	}

	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var doc orderDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return doc.toDomain()
}

func (m *MongoRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection.Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		order, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return orders, nil
}

func (m *MongoRepository) Close() error {
	return m.collection.Database().Client().Disconnect(context.Background())
}

func (d orderDocument) toDomain() (*domain.Order, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("stored order has invalid id %q: %w", d.ID, err)
	}
	return &domain.Order{
		ID:            id,
		BuyerID:       d.BuyerID,
		TransactionID: d.TransactionID,
		Amount:        domain.Cents(d.AmountCents),
		Status:        domain.OrderStatus(d.Status),
		Lines:         d.Lines,
		CreatedAt:     d.CreatedAt,
	}, nil
}
