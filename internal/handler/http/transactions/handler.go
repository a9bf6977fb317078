package transactions_http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/app/transfers"
	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/handler/http/httpx"
	"github.com/skv43r/transaction-service/internal/handler/http/middleware"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	maxIdempotencyKeyLength = 255
	retryAfterSeconds       = 1
)

type TransactionHandler struct {
	service transfers.TransferService
	logger  *zap.Logger
}

func NewTransactionHandler(s transfers.TransferService, l *zap.Logger) *TransactionHandler {
	return &TransactionHandler{service: s, logger: l}
}

type TransferRequest struct {
	ReceiverID int64           `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount" validate:"positive_decimal"`
}

type TransactionResponse struct {
	ID         int64           `json:"id"`
	SenderID   int64           `json:"sender_id"`
	ReceiverID int64           `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type BalanceResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:         t.ID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Amount:     t.Amount,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt.UTC(),
	}
}

func (h *TransactionHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		httpx.WriteError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	var req TransferRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		h.logger.Warn("Invalid transfer request", zap.Int64("caller_id", caller.ID), zap.Error(err))
		if errors.Is(err, httpx.ErrFieldPositiveAmount) {
			httpx.WriteError(w, domain.ErrInvalidAmount.Error(), http.StatusBadRequest)
			return
		}
		httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		httpx.WriteError(w, fmt.Sprintf("%s must be at most %d characters", IdempotencyKeyHeader, maxIdempotencyKeyLength), http.StatusBadRequest)
		return
	}

	txn, err := h.service.ExecuteTransfer(r.Context(), transfers.TransferRequest{
		CallerID:       caller.ID,
		ReceiverID:     req.ReceiverID,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount),
			errors.Is(err, domain.ErrSelfTransfer),
			errors.Is(err, domain.ErrInsufficientFunds):
			httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrReceiverNotFound), errors.Is(err, domain.ErrSenderNotFound):
			httpx.WriteError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrIdempotencyKeyReused):
			httpx.WriteError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrConcurrencyConflict):
			httpx.WriteUnavailable(w, domain.ErrConcurrencyConflict.Error(), retryAfterSeconds)
		case errors.Is(err, domain.ErrStoreUnavailable):
			httpx.WriteUnavailable(w, "Service temporarily unavailable", retryAfterSeconds)
		default:
			h.logger.Error("Transfer failed unexpectedly", zap.Int64("caller_id", caller.ID), zap.Error(err))
			httpx.WriteError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, toTransactionResponse(txn))
}

func (h *TransactionHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		httpx.WriteError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	q, err := parseListQuery(r)
	if err != nil {
		httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	q.ParticipantID = &caller.ID

	result, err := h.service.ListTransactions(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPage), errors.Is(err, domain.ErrInvalidStatus):
			httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrStoreUnavailable):
			httpx.WriteUnavailable(w, "Service temporarily unavailable", retryAfterSeconds)
		default:
			h.logger.Error("Failed to list transactions", zap.Int64("caller_id", caller.ID), zap.Error(err))
			httpx.WriteError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := make([]TransactionResponse, 0, len(result))
	for i := range result {
		resp = append(resp, toTransactionResponse(&result[i]))
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, resp)
}

func (h *TransactionHandler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		httpx.WriteError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	account, err := h.service.GetBalance(r.Context(), caller.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			httpx.WriteError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrStoreUnavailable):
			httpx.WriteUnavailable(w, "Service temporarily unavailable", retryAfterSeconds)
		default:
			h.logger.Error("Failed to get balance", zap.Int64("caller_id", caller.ID), zap.Error(err))
			httpx.WriteError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, BalanceResponse{UserID: account.ID, Balance: account.Balance})
}

func parseListQuery(r *http.Request) (transfers.ListQuery, error) {
	skip, limit, err := httpx.ParsePage(r)
	if err != nil {
		return transfers.ListQuery{}, err
	}
	q := transfers.ListQuery{Skip: skip, Limit: limit}
	values := r.URL.Query()

	if v := values.Get("status"); v != "" {
		status := domain.TransactionStatus(strings.ToLower(v))
		if !status.Valid() {
			return transfers.ListQuery{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, v)
		}
		q.Status = &status
	}
	if q.StartDate, err = parseDate(values.Get("start_date"), "start_date"); err != nil {
		return transfers.ListQuery{}, err
	}
	if q.EndDate, err = parseDate(values.Get("end_date"), "end_date"); err != nil {
		return transfers.ListQuery{}, err
	}
	return q, nil
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp. Only the
// date as written is kept; a timestamp's clock and offset are dropped, so
// 2024-03-15T00:30:00+03:00 selects 15 March.
func parseDate(v, name string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day, nil
		}
	}
	return nil, fmt.Errorf("%w: '%s' must be YYYY-MM-DD or RFC 3339", httpx.ErrInvalidQueryParam, name)
}
