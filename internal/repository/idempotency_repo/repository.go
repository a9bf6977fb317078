package idempotency_repo

import (
	"context"

	"github.com/skv43r/transaction-service/internal/domain"
)

type IdempotencyRepository interface {
	GetKeyTx(ctx context.Context, querier domain.Querier, callerID int64, key string) (*domain.IdempotencyRecord, error)
	CreateKeyTx(ctx context.Context, querier domain.Querier, record *domain.IdempotencyRecord) error
}
