package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/config"
)

func NewRouter(cfg *config.GatewayConfig, logger *zap.Logger) (http.Handler, error) {
	authURL, err := url.Parse(cfg.AuthServiceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Auth Service URL (%s): %w", cfg.AuthServiceURL, err)
	}
	ledgerURL, err := url.Parse(cfg.LedgerServiceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ledger Service URL (%s): %w", cfg.LedgerServiceURL, err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authProxy := createProxy(authURL, logger.With(zap.String("upstream", "auth")))
	ledgerProxy := createProxy(ledgerURL, logger.With(zap.String("upstream", "ledger")))

	r.Handle("/auth/*", authProxy)
	r.Handle("/transactions/*", ledgerProxy)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Gateway is healthy!"))
	})

	return r, nil
}

func createProxy(target *url.URL, logger *zap.Logger) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director

	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
		if id := middleware.GetReqID(req.Context()); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("Proxy error",
			zap.String("path", r.URL.Path),
			zap.String("target", target.String()),
			zap.Error(err))

		var netErr net.Error
		switch {
		case os.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
			renderJSONError(w, "Gateway Timeout", http.StatusGatewayTimeout)
		case errors.As(err, &netErr):
			renderJSONError(w, "Service Unavailable", http.StatusServiceUnavailable)
		default:
			renderJSONError(w, "Bad Gateway", http.StatusBadGateway)
		}
	}

	return proxy
}

func renderJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}{Error: message, Code: statusCode})
}
