package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/example/plant-store/internal/api"
	"github.com/example/plant-store/internal/api/middleware"
	"github.com/example/plant-store/internal/config"
	"github.com/example/plant-store/internal/domain/cart"
	"github.com/example/plant-store/internal/domain/wishlist"
	"github.com/example/plant-store/internal/infrastructure/catalog"
	"github.com/example/plant-store/internal/infrastructure/kafka"
	"github.com/example/plant-store/internal/infrastructure/store"
	"github.com/example/plant-store/internal/logger"
	"github.com/example/plant-store/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting plant store api",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"cache", cfg.Redis.Addr != "",
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)

	// The plant catalog always lives in MongoDB.
	mongoClient, err := store.ConnectMongo(ctx, cfg.Mongo, cfg.StoreTimeout, log)
	if err != nil {
		log.Fatal("connect mongodb", "error", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Warn("disconnect mongodb", "error", err)
		}
	}()
	db := mongoClient.Database(cfg.Mongo.Database)

	carts, wishlists, closeStore, err := openRepositories(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("open aggregate store", "driver", cfg.StoreDriver, "error", err)
	}
	defer closeStore()

	var plants catalog.Backend = catalog.NewMongoCatalog(db, cfg.StoreTimeout)
	if cfg.Redis.Addr != "" {
		rdb, err := catalog.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("plant cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer rdb.Close()
			plants = catalog.NewCachedCatalog(plants, rdb, cfg.Redis.CacheTTL, cfg.StoreTimeout, log)
		}
	}

	cartOpts := []cart.Option{cart.WithMutationAttempts(cfg.MutationAttempts)}
	wishlistOpts := []wishlist.Option{wishlist.WithMutationAttempts(cfg.MutationAttempts)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		cartOpts = append(cartOpts, cart.WithPublisher(producer))
		wishlistOpts = append(wishlistOpts, wishlist.WithPublisher(producer))
	}

	handlers := api.NewHandlers(
		cart.NewService(carts, plants, log, cartOpts...),
		wishlist.NewService(wishlists, plants, log, wishlistOpts...),
		query.NewHandler(plants),
		api.NewResponder(log, !cfg.IsProduction()),
	)
	router := api.NewRouter(api.RouterConfig{
		Handlers:       handlers,
		Log:            log,
		Env:            cfg.Env,
		ExposeErrors:   !cfg.IsProduction(),
		AllowedOrigins: cfg.AllowedOrigins(),
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window, cfg.RateLimit.TrustedProxies),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
}

// openRepositories builds the cart and wishlist repositories for the
// configured driver. The returned func releases driver resources.
func openRepositories(ctx context.Context, cfg *config.Config, db *mongo.Database, log *logger.Logger) (cart.Repository, wishlist.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := store.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, err
		}
		docs := store.NewPostgresDocumentStore(pg, cfg.StoreTimeout)
		if err := docs.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
		log.Info("using postgres aggregate store")
		closer := func() {
			if err := pg.Close(); err != nil {
				log.Warn("close postgres", "error", err)
			}
		}
		return store.NewDocumentCartRepository(docs), store.NewDocumentWishlistRepository(docs), closer, nil

	case config.DriverDynamo:
		client, err := store.NewDynamoClient(ctx, cfg.Dynamo)
		if err != nil {
			return nil, nil, nil, err
		}
		docs := store.NewDynamoDocumentStore(client, cfg.Dynamo.Table, cfg.StoreTimeout)
		log.Info("using dynamodb aggregate store", "table", cfg.Dynamo.Table)
		return store.NewDocumentCartRepository(docs), store.NewDocumentWishlistRepository(docs), func() {}, nil

	default:
		if err := store.EnsureIndexes(ctx, db); err != nil {
			return nil, nil, nil, err
		}
		log.Info("using mongodb aggregate store", "database", cfg.Mongo.Database)
		return store.NewMongoCartStore(db, cfg.StoreTimeout), store.NewMongoWishlistStore(db, cfg.StoreTimeout), func() {}, nil
	}
}
