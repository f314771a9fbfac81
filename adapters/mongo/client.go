package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

const (
	defaultDatabase = "jurubahasa"
	appName         = "jurubahasa-server"
	connectTimeout  = 10 * time.Second
)

// Client owns the connection pool backing interpreter session records.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to uri and selects dbName. Session records are written
// with majority acknowledgement so a terminated session's counters survive
// a primary failover.
func NewClient(ctx context.Context, uri, dbName string, logger *zap.Logger) (*Client, error) {
	if uri == "" {
		return nil, errors.New("mongodb URI is required")
	}
	if dbName == "" {
		dbName = defaultDatabase
	}

	opts := options.Client().
		ApplyURI(uri).
		SetAppName(appName).
		SetMaxPoolSize(20).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(10 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", dbName))
	return &Client{
		client:   client,
		database: client.Database(dbName),
		logger:   logger,
	}, nil
}

// Sessions returns the session repository with its indexes in place.
func (c *Client) Sessions(ctx context.Context) (*SessionRepository, error) {
	repo := NewSessionRepository(c.database, c.logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session indexes: %w", err)
	}
	return repo, nil
}

// Ping reports whether the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close drains the pool.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
