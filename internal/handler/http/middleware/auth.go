package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/auth"
	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/handler/http/httpx"
)

type callerKey struct{}

// Identifier resolves a bearer token to the account that owns it.
type Identifier interface {
	Identify(ctx context.Context, token string) (*domain.Account, error)
}

func WithCaller(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, callerKey{}, account)
}

// Caller returns the account resolved by Authenticate.
func Caller(ctx context.Context) (*domain.Account, bool) {
	account, ok := ctx.Value(callerKey{}).(*domain.Account)
	return account, ok && account != nil
}

// Authenticate requires a bearer token, taken from the Authorization header or,
// failing that, from the token query parameter. The resolved account is stored
// in the request context.
func Authenticate(identifier Identifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httpx.WriteError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			account, err := identifier.Identify(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrInvalidToken):
					logger.Warn("Rejected bearer token", zap.String("path", r.URL.Path), zap.Error(err))
					w.Header().Set("WWW-Authenticate", "Bearer")
					httpx.WriteError(w, "Could not validate credentials", http.StatusUnauthorized)
				case errors.Is(err, domain.ErrAccountNotFound):
					logger.Warn("Token subject no longer exists", zap.Error(err))
					httpx.WriteError(w, "User not found", http.StatusNotFound)
				case errors.Is(err, domain.ErrStoreUnavailable):
					logger.Error("Failed to resolve caller", zap.Error(err))
					httpx.WriteUnavailable(w, "Service temporarily unavailable", 1)
				default:
					logger.Error("Failed to resolve caller", zap.Error(err))
					httpx.WriteError(w, "Internal server error", http.StatusInternalServerError)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), account)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, auth.TokenType) {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
