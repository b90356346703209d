package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivanderson2066/velora-storefront/internal/cart"
	"github.com/ivanderson2066/velora-storefront/internal/catalog"
	"github.com/ivanderson2066/velora-storefront/internal/config"
	"github.com/ivanderson2066/velora-storefront/internal/consumer"
	storefronthttp "github.com/ivanderson2066/velora-storefront/internal/http"
	"github.com/ivanderson2066/velora-storefront/internal/reviews"
	"github.com/ivanderson2066/velora-storefront/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cart persistence: durable mongo first, redis next, memory last.
	// An unreachable backend is skipped, not fatal; the chain degrades
	// the same way the storefront degrades from localStorage down to a
	// per-tab cart.
	var backends []storage.Backend

	mongoDB, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName, cfg.MongoConnectTimeout)
	if err != nil {
		log.Printf("mongo unavailable, carts will not survive restarts: %v", err)
	} else {
		backends = append(backends, storage.NewMongoBackend(mongoDB, "carts"))
		log.Printf("connected to MongoDB at %s", cfg.MongoURI)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("redis ping failed, continuing anyway: %v", err)
	}
	backends = append(backends, storage.NewRedisBackend(redisClient, "velora:"))
	backends = append(backends, storage.NewMemoryBackend())

	chain := storage.NewChain(backends...)

	// Catalog client + cached product reads
	storefrontClient := catalog.NewClient(cfg.ShopifyDomain, cfg.ShopifyToken)
	products := catalog.NewCachedProducts(storefrontClient, redisClient)

	carts := cart.NewManager(storefrontClient, chain)
	go carts.Run(ctx) // drop idle in-memory stores; persistence keeps the carts

	// Reviews: the storefront still renders seed reviews when the
	// database is down.
	seed := loadReviewSeed(cfg.ReviewSeedPath)
	var reviewsRepo reviews.Lister = reviews.Unavailable{}
	cred := &reviews.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDir,
	}
	repo, err := reviews.NewRepository(cred)
	if err != nil {
		log.Printf("review database unavailable, serving seed reviews only: %v", err)
	} else {
		defer repo.Close()
		if err := repo.RunMigrations(cred); err != nil {
			log.Fatalf("failed to run review migrations: %v", err)
		}
		reviewsRepo = repo
	}
	reviewService := reviews.NewService(reviewsRepo, seed)

	// Checkout-completed events clear the session's cart
	if len(cfg.KafkaBrokers) > 0 {
		checkoutConsumer := consumer.New(carts, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		defer checkoutConsumer.Close()
		go checkoutConsumer.Run(ctx)
		log.Printf("consuming %s from %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}

	router := storefronthttp.NewRouter(carts, products, reviewService, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down storefront...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	if mongoDB != nil {
		if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
			log.Printf("error disconnecting mongo: %v", err)
		}
	}
	log.Println("storefront stopped")
}

func loadReviewSeed(path string) []reviews.Review {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("could not open review seed %s: %v", path, err)
		return nil
	}
	defer f.Close()

	seed, err := reviews.ParseSeedCSV(f)
	if err != nil {
		log.Printf("could not parse review seed %s: %v", path, err)
		return nil
	}
	log.Printf("loaded %d seed reviews", len(seed))
	return seed
}
