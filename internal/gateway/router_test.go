package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/config"
)

func upstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		w.Header().Set("X-Seen-Request-Id", r.Header.Get("X-Request-Id"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(r.Method + " " + r.URL.RequestURI()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, authURL, ledgerURL string) http.Handler {
	t.Helper()
	h, err := NewRouter(&config.GatewayConfig{
		AuthServiceURL:   authURL,
		LedgerServiceURL: ledgerURL,
		AllowedOrigins:   []string{"http://localhost:5173"},
		RequestTimeout:   5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return h
}

func TestRouterProxiesByPrefix(t *testing.T) {
	authSrv := upstream(t, "auth")
	ledgerSrv := upstream(t, "ledger")
	router := newTestRouter(t, authSrv.URL, ledgerSrv.URL)

	tests := []struct {
		method, target, wantUpstream string
	}{
		{http.MethodPost, "/auth/login", "auth"},
		{http.MethodGet, "/auth/users/3", "auth"},
		{http.MethodPost, "/transactions/transfer", "ledger"},
		{http.MethodGet, "/transactions/transactions?skip=0&limit=5", "ledger"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, strings.NewReader("{}")))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantUpstream, w.Header().Get("X-Upstream"))
			assert.Equal(t, tt.method+" "+tt.target, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Seen-Request-Id"))
		})
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t, upstream(t, "auth").URL, upstream(t, "ledger").URL)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterUpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	router := newTestRouter(t, deadURL, deadURL)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/users", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusServiceUnavailable, body.Code)
}

func TestRouterRejectsBadUpstreamURL(t *testing.T) {
	_, err := NewRouter(&config.GatewayConfig{AuthServiceURL: "://bad", LedgerServiceURL: "http://localhost"}, zap.NewNop())
	assert.Error(t, err)
}
