// internal/common/database/mongo.go
package database

import (
	"context"
	"fmt"
	"time"

	"notification-workers/internal/common/config"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoClient wraps the MongoDB client and the configured database.
type MongoClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongo connects to MongoDB, retrying until the server answers a ping.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*MongoClient, error) {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.URI).
				SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetMinPoolSize(cfg.MinPoolSize).
				SetMaxConnIdleTime(time.Duration(cfg.MaxConnIdleTime) * time.Millisecond).
				SetRetryWrites(true).
				SetRetryReads(true),
		)
		if err == nil {
			if err = client.Ping(ctx, readpref.Primary()); err == nil {
				return &MongoClient{Client: client, Database: client.Database(cfg.Database)}, nil
			}
			_ = client.Disconnect(ctx)
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(cfg.RetryInterval) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to mongo after %d attempts: %w", attempts, lastErr)
}

// Ping tests the MongoDB connection
func (c *MongoClient) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (c *MongoClient) Close(ctx context.Context) error {
	if c.Client != nil {
		return c.Client.Disconnect(ctx)
	}
	return nil
}
