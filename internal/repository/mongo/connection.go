package mongo

import (
	"context"
	"fmt"
	"time"

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

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// CreateIndexes creates the unique owner indexes and the cart/wishlist TTL indexes.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	ttl := options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60) // 90 days TTL

	specs := map[string][]mongo.IndexModel{
		cartsCollection: {
			{Keys: bsonD("user_id"), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("updated_at"), Options: ttl},
		},
		wishlistsCollection: {
			{Keys: bsonD("user_id"), Options: options.Index().SetUnique(true)},
			{Keys: bsonD("updated_at"), Options: ttl},
		},
		reviewsCollection: {
			{Keys: bsonD("product_id", "created_at")},
		},
	}

	for name, indexes := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
