package transactions_http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/app/transfers"
	"github.com/skv43r/transaction-service/internal/auth"
	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/handler/http/httpx"
	"github.com/skv43r/transaction-service/internal/handler/http/middleware"
)

const callerID = int64(1)

type stubService struct {
	transferErr error
	lastReq     transfers.TransferRequest
	lastQuery   transfers.ListQuery
	listed      []domain.Transaction
}

func (s *stubService) ExecuteTransfer(ctx context.Context, req transfers.TransferRequest) (*domain.Transaction, error) {
	s.lastReq = req
	if s.transferErr != nil {
		return nil, s.transferErr
	}
	return &domain.Transaction{
		ID:         11,
		SenderID:   req.CallerID,
		ReceiverID: req.ReceiverID,
		Amount:     req.Amount,
		Status:     domain.TransactionStatusCompleted,
		CreatedAt:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}, nil
}

func (s *stubService) ListTransactions(ctx context.Context, q transfers.ListQuery) ([]domain.Transaction, error) {
	s.lastQuery = q
	return s.listed, nil
}

func (s *stubService) GetBalance(ctx context.Context, accountID int64) (*domain.Account, error) {
	return &domain.Account{ID: accountID, Balance: decimal.RequireFromString("700.00")}, nil
}

type stubIdentifier struct{}

func (stubIdentifier) Identify(ctx context.Context, token string) (*domain.Account, error) {
	if token != "valid" {
		return nil, auth.ErrInvalidToken
	}
	return &domain.Account{ID: callerID, Username: "alice"}, nil
}

func newRouter(svc transfers.TransferService, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, svc, stubIdentifier{}, limiter, zap.NewNop())
	return r
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Authorization", "Bearer valid")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestTransferHandlerSuccess(t *testing.T) {
	svc := &stubService{}
	w := do(newRouter(svc, nil), http.MethodPost, "/transactions/transfer",
		`{"receiver_id": 2, "amount": "300.00"}`, map[string]string{IdempotencyKeyHeader: "abc"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, transfers.TransferRequest{
		CallerID:       callerID,
		ReceiverID:     2,
		Amount:         decimal.RequireFromString("300.00"),
		IdempotencyKey: "abc",
	}, svc.lastReq)

	var resp TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.ID)
	assert.Equal(t, callerID, resp.SenderID)
	assert.Equal(t, "completed", resp.Status)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(300)))
}

func TestTransferHandlerErrors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		serviceErr     error
		wantStatus     int
		wantRetryAfter bool
	}{
		{"malformed body", `{"receiver_id": `, nil, http.StatusBadRequest, false},
		{"zero amount", `{"receiver_id": 2, "amount": 0}`, nil, http.StatusBadRequest, false},
		{"negative amount", `{"receiver_id": 2, "amount": "-1"}`, nil, http.StatusBadRequest, false},
		{"self transfer", `{"receiver_id": 1, "amount": 1}`, domain.ErrSelfTransfer, http.StatusBadRequest, false},
		{"insufficient funds", `{"receiver_id": 2, "amount": 1}`, domain.ErrInsufficientFunds, http.StatusBadRequest, false},
		{"receiver missing", `{"receiver_id": 99, "amount": 1}`, domain.ErrReceiverNotFound, http.StatusNotFound, false},
		{"key reused", `{"receiver_id": 2, "amount": 1}`, domain.ErrIdempotencyKeyReused, http.StatusConflict, false},
		{"conflict", `{"receiver_id": 2, "amount": 1}`, fmt.Errorf("lock: %w", domain.ErrConcurrencyConflict), http.StatusServiceUnavailable, true},
		{"store down", `{"receiver_id": 2, "amount": 1}`, fmt.Errorf("%w: eof", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, true},
		{"unexpected", `{"receiver_id": 2, "amount": 1}`, fmt.Errorf("boom"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{transferErr: tt.serviceErr}
			w := do(newRouter(svc, nil), http.MethodPost, "/transactions/transfer", tt.body, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantRetryAfter {
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			}

			var body httpx.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestTransferHandlerInvalidAmountMessage(t *testing.T) {
	w := do(newRouter(&stubService{}, nil), http.MethodPost, "/transactions/transfer", `{"receiver_id": 2, "amount": -5}`, nil)

	var body httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrInvalidAmount.Error(), body.Error)
}

func TestTransferHandlerRequiresToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/transactions/transfer", strings.NewReader(`{"receiver_id": 2, "amount": 1}`))
	w := httptest.NewRecorder()
	newRouter(&stubService{}, nil).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransferHandlerRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	router := newRouter(&stubService{}, middleware.NewRateLimiter(client, 1, time.Minute, zap.NewNop()))

	body := `{"receiver_id": 2, "amount": 1}`
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/transactions/transfer", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(router, http.MethodPost, "/transactions/transfer", body, nil).Code)

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/transactions/balance", "", nil).Code)
}

func TestListTransactionsHandler(t *testing.T) {
	svc := &stubService{listed: []domain.Transaction{
		{ID: 1, SenderID: 1, ReceiverID: 2, Amount: decimal.NewFromInt(5), Status: domain.TransactionStatusCompleted},
	}}
	w := do(newRouter(svc, nil), http.MethodGet,
		"/transactions/transactions?skip=5&limit=500&status=COMPLETED&start_date=2024-03-15&end_date=2024-03-16T23:00:00%2B02:00", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)

	q := svc.lastQuery
	assert.Equal(t, 5, q.Skip)
	assert.Equal(t, httpx.MaxLimit, q.Limit)
	require.NotNil(t, q.Status)
	assert.Equal(t, domain.TransactionStatusCompleted, *q.Status)
	require.NotNil(t, q.ParticipantID)
	assert.Equal(t, callerID, *q.ParticipantID)
	require.NotNil(t, q.StartDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *q.StartDate)
	require.NotNil(t, q.EndDate)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), *q.EndDate)
}

func TestListTransactionsHandlerKeepsDateOfOffsetTimestamps(t *testing.T) {
	svc := &stubService{}
	w := do(newRouter(svc, nil), http.MethodGet,
		"/transactions/transactions?start_date=2024-03-15T00:30:00%2B03:00&end_date=2024-03-15T23:30:00-05:00", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NotNil(t, svc.lastQuery.StartDate)
	assert.Equal(t, day, *svc.lastQuery.StartDate)
	require.NotNil(t, svc.lastQuery.EndDate)
	assert.Equal(t, day, *svc.lastQuery.EndDate)
}

func TestListTransactionsHandlerDefaultsAndEmptyResult(t *testing.T) {
	svc := &stubService{}
	w := do(newRouter(svc, nil), http.MethodGet, "/transactions/transactions", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, 0, svc.lastQuery.Skip)
	assert.Equal(t, httpx.DefaultLimit, svc.lastQuery.Limit)
	assert.Nil(t, svc.lastQuery.Status)
	assert.Nil(t, svc.lastQuery.StartDate)
}

func TestListTransactionsHandlerRejectsBadParams(t *testing.T) {
	for _, query := range []string{"skip=-1", "limit=abc", "status=cancelled", "start_date=15-03-2024", "end_date=yesterday"} {
		t.Run(query, func(t *testing.T) {
			w := do(newRouter(&stubService{}, nil), http.MethodGet, "/transactions/transactions?"+query, "", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBalanceHandler(t *testing.T) {
	w := do(newRouter(&stubService{}, nil), http.MethodGet, "/transactions/balance", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, callerID, resp.UserID)
	assert.True(t, resp.Balance.Equal(decimal.NewFromInt(700)))
}
