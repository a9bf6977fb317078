package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IdempotencyRecord remembers which transaction a caller-supplied key produced,
// so a retried request replays the original result instead of moving money twice.
type IdempotencyRecord struct {
	CallerID      int64           `db:"caller_id"`
	Key           string          `db:"key"`
	ReceiverID    int64           `db:"receiver_id"`
	Amount        decimal.Decimal `db:"amount"`
	TransactionID int64           `db:"transaction_id"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Matches reports whether a request carries the same body as the one the key
// was first used with.
func (r *IdempotencyRecord) Matches(receiverID int64, amount decimal.Decimal) bool {
	return r.ReceiverID == receiverID && r.Amount.Equal(amount)
}
