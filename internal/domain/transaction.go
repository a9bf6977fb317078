package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

type Transaction struct {
	ID         int64             `db:"id"`
	SenderID   int64             `db:"sender_id"`
	ReceiverID int64             `db:"receiver_id"`
	Amount     decimal.Decimal   `db:"amount"`
	Status     TransactionStatus `db:"status"`
	CreatedAt  time.Time         `db:"created_at"`
}
