package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/jewel_cart/internal/checkout"
	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoAddressRepository struct {
	collection *mongo.Collection
}

func NewAddressRepository(db *mongo.Database) AddressRepository {
	return &mongoAddressRepository{
		collection: db.Collection("addresses"),
	}
}

// Save validates and upserts the address, assigning an ID to new ones.
func (m *mongoAddressRepository) Save(ctx context.Context, addr *domain.Address) error {
	if addr.SessionID == "" {
		return errors.New("address has no session")
	}
	if err := checkout.ValidateAddress(*addr); err != nil {
		return err
	}
	if addr.ID == "" {
		addr.ID = uuid.NewString()
	}
	if addr.CreatedAt.IsZero() {
		addr.CreatedAt = time.Now().UTC()
	}

	filter := bson.M{"_id": addr.ID, "session_id": addr.SessionID}
	_, err := m.collection.ReplaceOne(ctx, filter, addr, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save address: %w", err)
	}
	return nil
}

func (m *mongoAddressRepository) List(ctx context.Context, sessionID string) ([]domain.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer cursor.Close(ctx)

	addresses := make([]domain.Address, 0)
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, fmt.Errorf("failed to decode addresses: %w", err)
	}
	return addresses, nil
}

func (m *mongoAddressRepository) Get(ctx context.Context, sessionID, id string) (*domain.Address, error) {
	var addr domain.Address
	err := m.collection.FindOne(ctx, bson.M{"_id": id, "session_id": sessionID}).Decode(&addr)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &addr, nil
}

func (m *mongoAddressRepository) Delete(ctx context.Context, sessionID, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id, "session_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrAddressNotFound
	}
	return nil
}

func (m *mongoAddressRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
