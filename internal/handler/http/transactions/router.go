package transactions_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/app/transfers"
	"github.com/skv43r/transaction-service/internal/handler/http/middleware"
)

// RegisterRoutes mounts the ledger API. limiter may be nil, in which case
// transfers are not rate limited.
func RegisterRoutes(r chi.Router, s transfers.TransferService, identifier middleware.Identifier, limiter *middleware.RateLimiter, l *zap.Logger) {
	handler := NewTransactionHandler(s, l.With(zap.String("component", "TransactionHTTPHandler")))
	authenticate := middleware.Authenticate(identifier, l.With(zap.String("component", "Authenticate")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ledger service is healthy!"))
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Use(authenticate)

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Middleware)
			}
			r.Post("/transfer", handler.TransferHandler)
		})
		r.Get("/transactions", handler.ListTransactionsHandler)
		r.Get("/balance", handler.BalanceHandler)
	})
}
