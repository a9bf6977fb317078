package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AggregateTypeTransaction = "transaction"
	MessageTypeTransferDone  = "transfer.completed"
)

// TransferCompletedEvent is published for every committed transfer.
type TransferCompletedEvent struct {
	EventID       string            `json:"event_id"`
	TransactionID int64             `json:"transaction_id"`
	SenderID      int64             `json:"sender_id"`
	ReceiverID    int64             `json:"receiver_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}
