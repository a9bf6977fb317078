package outbox

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/skv43r/transaction-service/internal/domain"
)

// NewTransferCompletedMessage builds the outbox row announcing a committed
// transfer. Messages are keyed by sender so one account's events stay ordered
// within a partition.
func NewTransferCompletedMessage(txn *domain.Transaction, topic string) (*domain.OutboxMessage, error) {
	eventID := uuid.NewString()
	payload, err := json.Marshal(domain.TransferCompletedEvent{
		EventID:       eventID,
		TransactionID: txn.ID,
		SenderID:      txn.SenderID,
		ReceiverID:    txn.ReceiverID,
		Amount:        txn.Amount,
		Status:        txn.Status,
		CreatedAt:     txn.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer event for transaction %d: %w", txn.ID, err)
	}

	return &domain.OutboxMessage{
		ID:            eventID,
		AggregateID:   strconv.FormatInt(txn.ID, 10),
		AggregateType: domain.AggregateTypeTransaction,
		MessageType:   domain.MessageTypeTransferDone,
		Topic:         topic,
		Key:           strconv.FormatInt(txn.SenderID, 10),
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     txn.CreatedAt,
	}, nil
}
