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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/app/transfers"
	"github.com/skv43r/transaction-service/internal/app/users"
	"github.com/skv43r/transaction-service/internal/auth"
	"github.com/skv43r/transaction-service/internal/config"
	"github.com/skv43r/transaction-service/internal/handler/http/middleware"
	transactions_http "github.com/skv43r/transaction-service/internal/handler/http/transactions"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
	kafka_infra "github.com/skv43r/transaction-service/internal/infrastructure/kafka"
	"github.com/skv43r/transaction-service/internal/infrastructure/logging"
	"github.com/skv43r/transaction-service/internal/outbox"
	"github.com/skv43r/transaction-service/internal/repository/accounts_repo"
	"github.com/skv43r/transaction-service/internal/repository/idempotency_repo"
	"github.com/skv43r/transaction-service/internal/repository/outbox_repo"
	"github.com/skv43r/transaction-service/internal/repository/transactions_repo"
)

func main() {
	cfg, err := config.LoadConfig(config.ServiceLedger, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Ledger Service starting...")
	if cfg.UsesDefaultSecret() {
		appLogger.Warn("JWT secret is the built-in development value; set LEDGER_JWT_SECRET")
	}

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	appLogger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(ctxMain, cfg.Postgres(), cfg.DBConnectRetries, cfg.DBConnectRetryDelay, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	if cfg.RunMigrations {
		if err := database.RunMigrations(db.DB, appLogger); err != nil {
			appLogger.Fatal("Failed to run database migrations", zap.Error(err))
		}
	}

	accountRepository := accounts_repo.NewAccountRepository()
	transactionRepository := transactions_repo.NewTransactionRepository()
	outboxRepository := outbox_repo.NewOutboxRepository()
	idempotencyRepository := idempotency_repo.NewIdempotencyRepository()

	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTExpiration)
	if err != nil {
		appLogger.Fatal("Failed to create token manager", zap.Error(err))
	}
	userService := users.NewUserService(
		db,
		accountRepository,
		auth.NewPasswordHasher(),
		tokenManager,
		appLogger.With(zap.String("component", "UserService")),
	)

	kafkaBrokers := cfg.GetKafkaBrokers()
	settings := transfers.Settings{
		LockTimeout: cfg.TransferLockTimeout,
		MaxRetries:  cfg.TransferMaxRetries,
	}
	if len(kafkaBrokers) > 0 {
		settings.EventsTopic = cfg.KafkaTransfersTopic
	}
	transferService := transfers.NewTransferService(
		db,
		accountRepository,
		transactionRepository,
		outboxRepository,
		idempotencyRepository,
		settings,
		appLogger.With(zap.String("component", "TransferService")),
	)
	appLogger.Info("Transfer Service initialized.")

	var limiter *middleware.RateLimiter
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, pingCancel := context.WithTimeout(ctxMain, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			appLogger.Warn("Redis is not reachable yet; rate limiting fails open until it is", zap.Error(err))
		}
		pingCancel()
		limiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit, cfg.RateLimitWindow,
			appLogger.With(zap.String("component", "RateLimiter")))
		appLogger.Info("Rate limiting enabled.",
			zap.Int("limit", cfg.RateLimit),
			zap.Duration("window", cfg.RateLimitWindow))
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	transactions_http.RegisterRoutes(router, transferService, userService, limiter, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var kafkaProducer kafka_infra.Producer
	processorDone := make(chan struct{})
	if len(kafkaBrokers) > 0 {
		topicsCtx, topicsCancel := context.WithTimeout(ctxMain, 10*time.Second)
		if err := kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers, []string{cfg.KafkaTransfersTopic}, appLogger); err != nil {
			appLogger.Warn("Failed to ensure Kafka topics; relying on broker auto-creation", zap.Error(err))
		}
		topicsCancel()

		kafkaProducer = kafka_infra.NewBreakerProducer(
			kafka_infra.NewProducer(kafkaBrokers, 10*time.Second, appLogger.With(zap.String("component", "KafkaProducer"))),
			kafka_infra.BreakerSettings{MaxFailures: 5, OpenTimeout: 30 * time.Second},
			appLogger.With(zap.String("component", "KafkaBreaker")),
		)

		outboxProcessor := outbox.NewProcessor(
			db,
			outboxRepository,
			kafkaProducer,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			cfg.OutboxBatchSize,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		go func() {
			defer close(processorDone)
			outboxProcessor.Start(ctxMain)
			appLogger.Info("Outbox Processor stopped.")
		}()
	} else {
		close(processorDone)
		appLogger.Info("No Kafka brokers configured; transfer events are not published.")
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// stop taking requests before the publisher goes away
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	cancelMain()
	select {
	case <-processorDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("Outbox Processor did not stop before the shutdown deadline.")
	}

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			appLogger.Error("Error closing Redis client", zap.Error(err))
		}
	}

	appLogger.Info("Application gracefully shut down.")
}
