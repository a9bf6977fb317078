package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccountCanDebit(t *testing.T) {
	a := &Account{Balance: decimal.RequireFromString("100.50")}

	assert.True(t, a.CanDebit(decimal.RequireFromString("100.5")))
	assert.True(t, a.CanDebit(decimal.RequireFromString("0.01")))
	assert.False(t, a.CanDebit(decimal.RequireFromString("100.51")))
}

func TestTransactionStatusValid(t *testing.T) {
	for _, s := range []TransactionStatus{TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, TransactionStatus("COMPLETED").Valid())
	assert.False(t, TransactionStatus("").Valid())
}

func TestIdempotencyRecordMatches(t *testing.T) {
	r := &IdempotencyRecord{ReceiverID: 2, Amount: decimal.RequireFromString("300.0")}

	assert.True(t, r.Matches(2, decimal.RequireFromString("300")))
	assert.False(t, r.Matches(3, decimal.RequireFromString("300")))
	assert.False(t, r.Matches(2, decimal.RequireFromString("300.01")))
}

func TestStartingBalance(t *testing.T) {
	assert.True(t, StartingBalance.Equal(decimal.NewFromInt(1000)))
}
