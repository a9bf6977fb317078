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
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/app/users"
	"github.com/skv43r/transaction-service/internal/auth"
	"github.com/skv43r/transaction-service/internal/config"
	users_http "github.com/skv43r/transaction-service/internal/handler/http/users"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
	"github.com/skv43r/transaction-service/internal/infrastructure/logging"
	"github.com/skv43r/transaction-service/internal/repository/accounts_repo"
)

func main() {
	cfg, err := config.LoadConfig(config.ServiceAuth, os.Args[1:])
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
	appLogger.Info("Auth Service starting...")
	if cfg.UsesDefaultSecret() {
		appLogger.Warn("JWT secret is the built-in development value; set AUTH_JWT_SECRET")
	}

	appLogger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(context.Background(), cfg.Postgres(), cfg.DBConnectRetries, cfg.DBConnectRetryDelay, appLogger)
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

	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTExpiration)
	if err != nil {
		appLogger.Fatal("Failed to create token manager", zap.Error(err))
	}

	userService := users.NewUserService(
		db,
		accounts_repo.NewAccountRepository(),
		auth.NewPasswordHasher(),
		tokenManager,
		appLogger.With(zap.String("component", "UserService")),
	)
	appLogger.Info("User Service initialized.")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	users_http.RegisterRoutes(router, userService, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	appLogger.Info("Application gracefully shut down.")
}
