// Package mongostore keeps chat messages in MongoDB. Users stay in Postgres;
// sender and receiver projections are resolved through a UserDirectory.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "messages"

// NewDB creates a new MongoDB client and connects to the named database.
func NewDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client.Database(database), nil
}

// EnsureIndexes creates the indexes the conversation and unread queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(messageCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "isRead", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}
	return nil
}
