package config

import (
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
)

type GatewayConfig struct {
	GatewayPort      int
	AuthServiceURL   string
	LedgerServiceURL string
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	LogLevel         string
}

// LoadGatewayConfig reads GATEWAY_* settings the same way LoadConfig does.
func LoadGatewayConfig(args []string) (*GatewayConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &GatewayConfig{}
	var origins string
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	fs.IntVar(&cfg.GatewayPort, "port", 8080, "port the gateway listens on")
	fs.StringVar(&cfg.AuthServiceURL, "auth-service-url", "http://localhost:8081", "auth service base URL")
	fs.StringVar(&cfg.LedgerServiceURL, "ledger-service-url", "http://localhost:8082", "ledger service base URL")
	fs.StringVar(&origins, "allowed-origins", "http://localhost:5173", "comma separated CORS origins")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", 30*time.Second, "upstream request timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("GATEWAY")); err != nil {
		return nil, fmt.Errorf("failed to parse gateway config: %w", err)
	}

	for _, raw := range []string{cfg.AuthServiceURL, cfg.LedgerServiceURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid upstream URL %q: %w", raw, err)
		}
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}
