package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is an event written in the same transaction as the state change
// it describes and published to Kafka later by the outbox processor.
type OutboxMessage struct {
	ID            string              `db:"id"`
	AggregateID   string              `db:"aggregate_id"`
	AggregateType string              `db:"aggregate_type"`
	MessageType   string              `db:"message_type"`
	Topic         string              `db:"topic"`
	Key           string              `db:"key"`
	Payload       []byte              `db:"payload"`
	Status        OutboxMessageStatus `db:"status"`
	CreatedAt     time.Time           `db:"created_at"`
	SentAt        *time.Time          `db:"sent_at"`
}
