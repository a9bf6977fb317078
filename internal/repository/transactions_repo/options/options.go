package options

import "github.com/skv43r/transaction-service/internal/domain"

const DefaultLimit = 10

// TransactionOptions configure a Find over the transaction log.
type TransactionOptions struct {
	// filters transactions that match any id in this slice
	IDs []int64
	// filters transactions with exactly this status
	Status *domain.TransactionStatus
	// filters transactions created in this range (inclusive)
	Timestamp *TimeRange
	// filters transactions where this account is sender or receiver
	ParticipantID *int64

	Skip  int
	Limit int
}

func NewTransactionOptions() *TransactionOptions {
	return &TransactionOptions{Limit: DefaultLimit}
}

func (o *TransactionOptions) SetIDs(v ...int64) *TransactionOptions {
	o.IDs = v
	return o
}

func (o *TransactionOptions) SetStatus(v domain.TransactionStatus) *TransactionOptions {
	o.Status = &v
	return o
}

func (o *TransactionOptions) SetTimeRange(v *TimeRange) *TransactionOptions {
	o.Timestamp = v
	return o
}

func (o *TransactionOptions) SetParticipant(accountID int64) *TransactionOptions {
	o.ParticipantID = &accountID
	return o
}

func (o *TransactionOptions) SetPage(skip, limit int) *TransactionOptions {
	o.Skip = skip
	o.Limit = limit
	return o
}
