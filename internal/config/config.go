package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"

	"github.com/skv43r/transaction-service/internal/infrastructure/database"
)

const (
	ServiceAuth   = "auth"
	ServiceLedger = "ledger"

	defaultJWTSecret = "change-me"
)

type Config struct {
	Service  string
	HTTPPort int
	LogLevel string

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}
	DBConnectRetries    int
	DBConnectRetryDelay time.Duration
	RunMigrations       bool

	JWTSecret     string
	JWTAlgorithm  string
	JWTExpiration time.Duration

	KafkaBrokerURL      string
	KafkaTransfersTopic string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration
	OutboxBatchSize    int

	TransferLockTimeout time.Duration
	TransferMaxRetries  int

	RedisAddr       string
	RateLimit       int
	RateLimitWindow time.Duration
}

// LoadConfig reads settings for service from flags, then from environment
// variables prefixed with the upper-cased service name (LEDGER_DB_HOST for
// -db-host), then from a .env file in the working directory if one exists.
func LoadConfig(service string, args []string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{Service: service}
	fs := flag.NewFlagSet(service, flag.ContinueOnError)

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultPort(service), "port the HTTP server listens on")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error")

	fs.StringVar(&cfg.DBConfig.Host, "db-host", "localhost", "postgres host")
	fs.IntVar(&cfg.DBConfig.Port, "db-port", 5432, "postgres port")
	fs.StringVar(&cfg.DBConfig.User, "db-user", "user", "postgres user")
	fs.StringVar(&cfg.DBConfig.Password, "db-password", "password", "postgres password")
	fs.StringVar(&cfg.DBConfig.Name, "db-name", "transactions_db", "postgres database name")
	fs.StringVar(&cfg.DBConfig.SSLMode, "db-sslmode", "disable", "postgres sslmode")
	fs.IntVar(&cfg.DBConfig.MaxConns, "db-max-conns", 20, "maximum open connections")
	fs.IntVar(&cfg.DBConnectRetries, "db-connect-retries", 10, "attempts to reach the database on start")
	fs.DurationVar(&cfg.DBConnectRetryDelay, "db-connect-retry-delay", 5*time.Second, "delay between connection attempts")
	fs.BoolVar(&cfg.RunMigrations, "run-migrations", true, "apply embedded migrations on start")

	fs.StringVar(&cfg.JWTSecret, "jwt-secret", defaultJWTSecret, "HMAC secret shared by the auth and ledger services")
	fs.StringVar(&cfg.JWTAlgorithm, "jwt-algorithm", "HS256", "JWT signing algorithm")
	fs.DurationVar(&cfg.JWTExpiration, "jwt-expiration", 3600*time.Second, "access token lifetime")

	fs.StringVar(&cfg.KafkaBrokerURL, "kafka-broker-url", "", "comma separated brokers; empty disables event publishing")
	fs.StringVar(&cfg.KafkaTransfersTopic, "kafka-transfers-topic", "transfers", "topic for transfer events")

	fs.DurationVar(&cfg.OutboxPollInterval, "outbox-poll-interval", time.Second, "outbox poll interval")
	fs.DurationVar(&cfg.OutboxPollTimeout, "outbox-poll-timeout", 5*time.Second, "deadline for one outbox batch")
	fs.IntVar(&cfg.OutboxBatchSize, "outbox-batch-size", 50, "messages published per poll")

	fs.DurationVar(&cfg.TransferLockTimeout, "transfer-lock-timeout", 2*time.Second, "maximum wait for account row locks")
	fs.IntVar(&cfg.TransferMaxRetries, "transfer-max-retries", 3, "retries after a concurrency conflict")

	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for rate limiting; empty disables it")
	fs.IntVar(&cfg.RateLimit, "rate-limit", 20, "transfers per caller per window")
	fs.DurationVar(&cfg.RateLimitWindow, "rate-limit-window", time.Minute, "rate limit window")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(strings.ToUpper(service))); err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", service, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.JWTSecret == "":
		return errors.New("jwt secret must not be empty")
	case c.JWTAlgorithm != "HS256" && c.JWTAlgorithm != "HS384" && c.JWTAlgorithm != "HS512":
		return fmt.Errorf("unsupported jwt algorithm %q", c.JWTAlgorithm)
	case c.JWTExpiration <= 0:
		return errors.New("jwt expiration must be positive")
	case c.TransferMaxRetries < 0:
		return errors.New("transfer max retries must not be negative")
	case c.TransferLockTimeout <= 0:
		return errors.New("transfer lock timeout must be positive")
	}
	return nil
}

// UsesDefaultSecret reports whether the JWT secret was left at its built-in
// development value.
func (c *Config) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

func (c *Config) Postgres() database.DBConfig {
	return database.DBConfig{
		Host:            c.DBConfig.Host,
		Port:            c.DBConfig.Port,
		User:            c.DBConfig.User,
		Password:        c.DBConfig.Password,
		DBName:          c.DBConfig.Name,
		SSLMode:         c.DBConfig.SSLMode,
		MaxOpenConns:    c.DBConfig.MaxConns,
		MaxIdleConns:    c.DBConfig.MaxConns / 2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (c *Config) GetKafkaBrokers() []string {
	if strings.TrimSpace(c.KafkaBrokerURL) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func defaultPort(service string) int {
	switch service {
	case ServiceAuth:
		return 8081
	case ServiceLedger:
		return 8082
	}
	return 8080
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
