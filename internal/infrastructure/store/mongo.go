package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/plant-store/internal/config"
	"github.com/example/plant-store/internal/logger"
)

const (
	CartsCollection     = "carts"
	WishlistsCollection = "wishlists"
)

// ConnectMongo establishes a connection to MongoDB and verifies it with a ping
func ConnectMongo(ctx context.Context, cfg config.MongoConfig, timeout time.Duration, log *logger.Logger) (*mongo.Client, error) {
	monitor := &event.ServerMonitor{
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			log.Warn("mongo heartbeat failed", "connection_id", e.ConnectionID, "error", e.Failure)
		},
		ServerClosed: func(e *event.ServerClosedEvent) {
			log.Warn("mongo server closed", "address", e.Address.String())
		},
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetServerMonitor(monitor)
	if timeout > 0 {
		opts.SetTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ServerSelectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// aggregateIndexes lists the indexes per collection. The unique userId
// index is what rejects a second first-time insert in saveVersioned.
func aggregateIndexes() map[string][]mongo.IndexModel {
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	return map[string][]mongo.IndexModel{
		CartsCollection: {unique},
		WishlistsCollection: {
			unique,
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "plants.plantId", Value: 1}}},
		},
	}
}

// EnsureIndexes creates the one-document-per-user indexes for carts and
// wishlists. The mongo stores must not serve writes without them.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{CartsCollection, WishlistsCollection} {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, aggregateIndexes()[name]); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// versionFilter selects the document a save may replace. Version zero
// matches a missing document or one written without a version field.
func versionFilter(userID string, expected int64) bson.M {
	if expected == 0 {
		return bson.M{"userId": userID, "version": nil}
	}
	return bson.M{"userId": userID, "version": expected}
}

// saveVersioned writes doc for userID guarded by the expected version.
// A first-time save upserts; when a versioned document already exists the
// upsert collides with the unique userId index and reports a lost race.
func saveVersioned(ctx context.Context, coll *mongo.Collection, userID string, expected int64, doc any) (bool, error) {
	filter := versionFilter(userID, expected)
	if expected == 0 {
		_, err := coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
		return insertOutcome(err)
	}

	res, err := coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// insertOutcome maps the result of a first-time upsert: a duplicate key is a
// lost race, not a failure.
func insertOutcome(err error) (bool, error) {
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
