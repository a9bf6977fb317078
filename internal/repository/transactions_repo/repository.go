package transactions_repo

import (
	"context"

	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/repository/transactions_repo/options"
)

// TransactionRepository is the append-only transaction log.
type TransactionRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, txn *domain.Transaction) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Transaction, error)
	FindTx(ctx context.Context, querier domain.Querier, opts *options.TransactionOptions) ([]domain.Transaction, error)
}
