package accounts_repo

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/skv43r/transaction-service/internal/domain"
)

// AccountRepository is the account store. Every method runs on the supplied
// querier so callers decide the transaction boundary.
type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error)
	GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error)
	GetAccountByUsernameTx(ctx context.Context, querier domain.Querier, username string) (*domain.Account, error)
	ListAccountsTx(ctx context.Context, querier domain.Querier, skip, limit int) ([]domain.Account, error)
	ApplyBalanceDeltaTx(ctx context.Context, querier domain.Querier, id int64, delta decimal.Decimal) (*domain.Account, error)
	UpdatePasswordTx(ctx context.Context, querier domain.Querier, id int64, hashedPassword string) error
}
