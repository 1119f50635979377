package database

import (
	"context"
	"errors"
	"fmt"
	"idea-research/internal/config"
	"idea-research/internal/models"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBClient wraps the MongoDB client used to persist strategies
type MongoDBClient struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
}

// BuildMongoURI returns the connection URI and a variant safe to log
func BuildMongoURI(cfg config.MongoDBConfig) (uri, logURI string) {
	if cfg.URI != "" {
		return cfg.URI, redactURI(cfg.URI)
	}

	if cfg.Username != "" && cfg.Password != "" {
		authSource := cfg.AuthSource
		if authSource == "" {
			authSource = "admin"
		}
		userInfo := url.UserPassword(cfg.Username, cfg.Password)
		uri = fmt.Sprintf("mongodb://%s@%s:%s/%s?authSource=%s",
			userInfo.String(), cfg.Host, cfg.Port, cfg.Database, url.QueryEscape(authSource))
		logURI = fmt.Sprintf("mongodb://%s:***@%s:%s/%s?authSource=%s",
			url.User(cfg.Username).String(), cfg.Host, cfg.Port, cfg.Database, url.QueryEscape(authSource))
		return uri, logURI
	}

	uri = fmt.Sprintf("mongodb://%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)
	return uri, uri
}

func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return raw
	}
	user := url.User(parsed.User.Username())
	parsed.User = user
	return strings.Replace(parsed.String(), user.String()+"@", user.String()+":***@", 1)
}

// NewMongoDBClient connects to MongoDB and prepares the strategies collection
func NewMongoDBClient(cfg config.MongoDBConfig, logger *slog.Logger) (*MongoDBClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uri, logURI := BuildMongoURI(cfg)
	logger.Info("connecting to MongoDB", "uri", logURI)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB at %s: %w", logURI, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", logURI, err)
	}

	database := client.Database(cfg.Database)
	collection := database.Collection(cfg.Collection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: 1}},
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		// Index might already exist
		logger.Warn("MongoDB index creation failed", "collection", cfg.Collection, "error", err)
	}

	return &MongoDBClient{
		client:     client,
		database:   database,
		collection: collection,
	}, nil
}

// Close closes the MongoDB client connection
func (c *MongoDBClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Save upserts a strategy document keyed by its id
func (c *MongoDBClient) Save(ctx context.Context, strategy *models.Strategy) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := c.collection.ReplaceOne(ctx, bson.M{"_id": strategy.ID}, strategy, opts); err != nil {
		return fmt.Errorf("failed to save strategy %s: %w", strategy.ID, err)
	}
	return nil
}

// Get loads a strategy by id
func (c *MongoDBClient) Get(ctx context.Context, id string) (*models.Strategy, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var strategy models.Strategy
	err := c.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&strategy)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query strategy %s: %w", id, err)
	}
	return &strategy, nil
}

// ListBySession returns a session's strategies, oldest first
func (c *MongoDBClient) ListBySession(ctx context.Context, sessionID string) ([]*models.Strategy, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := c.collection.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies for session %s: %w", sessionID, err)
	}
	defer cursor.Close(ctx)

	var strategies []*models.Strategy
	if err := cursor.All(ctx, &strategies); err != nil {
		return nil, fmt.Errorf("failed to decode strategies: %w", err)
	}
	return strategies, nil
}
