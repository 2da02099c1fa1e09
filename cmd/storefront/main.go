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

	"github.com/fjod/jewel_cart/internal/backend"
	"github.com/fjod/jewel_cart/internal/cache"
	"github.com/fjod/jewel_cart/internal/consumer"
	apihttp "github.com/fjod/jewel_cart/internal/http"
	"github.com/fjod/jewel_cart/internal/payment"
	"github.com/fjod/jewel_cart/internal/publisher"
	"github.com/fjod/jewel_cart/internal/repository"
	"github.com/fjod/jewel_cart/internal/session"
	"github.com/fjod/jewel_cart/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg := loadConfig()
	ctx := context.Background()

	tp, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	// Redis: session snapshots
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	logger.Info("Redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	sessionCache := cache.NewRedisCache(redisClient, cfg.SessionTTL)

	// MongoDB: saved delivery addresses
	var addresses repository.AddressRepository
	if cfg.MongoURI != "" {
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoDB.Client().Disconnect(context.Background())

		addresses = repository.NewAddressRepository(mongoDB)
		if ix, ok := addresses.(interface{ CreateIndexes(context.Context) error }); ok {
			if err := ix.CreateIndexes(ctx); err != nil {
				logger.Fatal("Failed to create address indexes", zap.Error(err))
			}
		}
		logger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDBName))
	}

	sessionOpts := []session.Option{}

	// Postgres: checkout journal
	if cfg.Postgres.Host != "" {
		journal, err := repository.NewCheckoutRepository(&cfg.Postgres)
		if err != nil {
			logger.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer journal.Close()
		if err := journal.RunMigrations(&cfg.Postgres); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		sessionOpts = append(sessionOpts, session.WithJournal(journal))
		logger.Info("Checkout journal enabled", zap.String("host", cfg.Postgres.Host))
	}

	// Kafka: order-placed events
	if len(cfg.KafkaBrokers) > 0 {
		orderPublisher := publisher.NewOrderPublisher(logger, cfg.KafkaBrokers...)
		defer orderPublisher.Close()
		sessionOpts = append(sessionOpts, session.WithPublisher(orderPublisher))
		logger.Info("Order events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	backendClient := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
	}, logger)

	gateway, err := payment.NewTelrGateway(cfg.Telr, logger)
	if err != nil {
		logger.Fatal("Failed to configure payment gateway", zap.Error(err))
	}

	sessions := session.NewManager(sessionCache, gateway, backendClient, cfg.Checkout, logger, sessionOpts...)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if len(cfg.KafkaBrokers) > 0 {
		orderConsumer := consumer.NewOrderConsumer(sessions, logger, cfg.KafkaGroupID, cfg.KafkaBrokers...)
		defer orderConsumer.Close()
		go orderConsumer.Run(consumerCtx)
		logger.Info("Order consumer started", zap.String("group_id", cfg.KafkaGroupID))
	}

	go sessions.RunSweeper(consumerCtx, cfg.SessionSweepInterval, cfg.SessionIdleTimeout)

	limiter := apihttp.NewRateLimiter(cfg.CheckoutPerMinute, cfg.CheckoutBurst)
	go limiter.Run(consumerCtx, time.Minute)

	router := apihttp.NewRouter(apihttp.RouterConfig{
		RequestTimeout:        cfg.RequestTimeout,
		MaxRequestBodySize:    cfg.MaxRequestBodySize,
		AllowedOrigins:        cfg.AllowedOrigins,
		CheckoutRatePerMinute: cfg.CheckoutPerMinute,
		CheckoutBurst:         cfg.CheckoutBurst,
	}, apihttp.Dependencies{
		Sessions:  sessions,
		Products:  backendClient,
		Addresses: addresses,
		Logger:    logger,
		Limiter:   limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Storefront listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down storefront...")
	stopConsumer()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Storefront stopped")
}
