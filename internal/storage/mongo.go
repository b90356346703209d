package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoBackend is the durable slot in the chain: one document per key in
// a single collection, upserted on every write.
type MongoBackend struct {
	collection *mongo.Collection
}

type kvDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoBackend(db *mongo.Database, collection string) *MongoBackend {
	return &MongoBackend{collection: db.Collection(collection)}
}

// ConnectMongoDB dials the cart store's mongo deployment and verifies a
// primary is reachable before handing the database back. connectTimeout
// bounds both the dial and the server selection wait; carts are small
// documents, so the pool stays modest.
func ConnectMongoDB(ctx context.Context, uri, database string, connectTimeout time.Duration) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("velora-storefront").
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout).
		SetMaxPoolSize(25)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect %q: %w", database, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client.Database(database), nil
}

func (m *MongoBackend) Get(ctx context.Context, key string) (string, error) {
	var doc kvDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("mongo get failed: %w", err)
	}
	return doc.Value, nil
}

func (m *MongoBackend) Set(ctx context.Context, key, value string) error {
	doc := kvDocument{Key: key, Value: value, UpdatedAt: time.Now()}
	opts := options.Update().SetUpsert(true)
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": doc}, opts)
	if err != nil {
		return fmt.Errorf("mongo set failed: %w", err)
	}
	return nil
}

func (m *MongoBackend) Remove(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo delete failed: %w", err)
	}
	return nil
}

func (m *MongoBackend) Clear(ctx context.Context) error {
	if _, err := m.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("mongo clear failed: %w", err)
	}
	return nil
}
