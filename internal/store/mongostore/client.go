// Package mongostore is the MongoDB Store. Transactions need a replica set;
// single writes also work against a standalone server.
package mongostore

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client wraps the MongoDB client with helper methods
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect establishes a connection to MongoDB
func Connect(ctx context.Context, uri, database string, maxConns int32) (*Client, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxConnIdleTime(5 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)
	if maxConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(maxConns))
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	slog.Info("Connected to MongoDB", "database", database)

	return &Client{
		client:   client,
		database: client.Database(database),
	}, nil
}

// Database returns the default database
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Collection returns a collection from the default database
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Ping checks if the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Disconnect closes the MongoDB connection
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// WithTransaction runs fn in a transaction on a fresh session.
func (c *Client) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})

	return err
}
