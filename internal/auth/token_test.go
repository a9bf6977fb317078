package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skv43r/transaction-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager("secret", "HS256", time.Hour)
	require.NoError(t, err)

	token, err := m.Issue(&domain.Account{ID: 7, Username: "alice"})
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestTokenExpired(t *testing.T) {
	m, err := NewTokenManager("secret", "HS256", time.Hour)
	require.NoError(t, err)
	issuedAt := time.Date(2024, 12, 24, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	token, err := m.Issue(&domain.Account{ID: 7, Username: "alice"})
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer, err := NewTokenManager("secret", "HS256", time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokenManager("other", "HS256", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(&domain.Account{ID: 1, Username: "bob"})
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	m, err := NewTokenManager("secret", "HS256", time.Hour)
	require.NoError(t, err)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManagerRejectsNonHMAC(t *testing.T) {
	_, err := NewTokenManager("secret", "RS256", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("secret", "nope", time.Hour)
	assert.Error(t, err)
}
