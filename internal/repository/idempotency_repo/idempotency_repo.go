package idempotency_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
)

var ErrKeyNotFound = errors.New("idempotency key not found")

type idempotencyRepository struct{}

func NewIdempotencyRepository() *idempotencyRepository {
	return &idempotencyRepository{}
}

var _ IdempotencyRepository = (*idempotencyRepository)(nil)

func (r *idempotencyRepository) GetKeyTx(ctx context.Context, querier domain.Querier, callerID int64, key string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT caller_id, key, receiver_id, amount, transaction_id, created_at
		FROM idempotency_keys
		WHERE caller_id = $1 AND key = $2
	`
	record := &domain.IdempotencyRecord{}
	if err := querier.GetContext(ctx, record, query, callerID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency key %q: %w", key, database.ClassifyError(err))
	}
	return record, nil
}

// CreateKeyTx stores the key. A concurrent request that committed the same key
// first makes the insert fail with a unique violation; that is reported as a
// concurrency conflict so the caller retries and then finds the stored record.
func (r *idempotencyRepository) CreateKeyTx(ctx context.Context, querier domain.Querier, record *domain.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_keys (caller_id, key, receiver_id, amount, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := querier.ExecContext(ctx, query,
		record.CallerID,
		record.Key,
		record.ReceiverID,
		record.Amount,
		record.TransactionID,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: idempotency key %q stored concurrently", domain.ErrConcurrencyConflict, record.Key)
		}
		return fmt.Errorf("failed to store idempotency key %q: %w", record.Key, database.ClassifyError(err))
	}
	return nil
}
