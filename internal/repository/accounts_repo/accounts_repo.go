package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
)

const (
	constraintUsernameUnique     = "users_username_key"
	constraintEmailUnique        = "users_email_key"
	constraintBalanceNonNegative = "users_balance_non_negative"

	accountColumns = "id, username, hashed_password, email, balance"
)

type accountRepository struct{}

func NewAccountRepository() *accountRepository {
	return &accountRepository{}
}

var _ AccountRepository = (*accountRepository)(nil)

func (r *accountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO users (username, hashed_password, email, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := querier.QueryRowxContext(ctx, query,
		account.Username, account.HashedPassword, account.Email, account.Balance,
	).Scan(&account.ID)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.Constraint {
			case constraintUsernameUnique:
				return domain.ErrUsernameTaken
			case constraintEmailUnique:
				return domain.ErrEmailTaken
			}
		}
		return fmt.Errorf("failed to create account for %s: %w", account.Username, database.ClassifyError(err))
	}
	return nil
}

func (r *accountRepository) GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	return r.getOne(ctx, querier, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

// GetAccountForUpdateTx locks the row until the surrounding transaction ends.
func (r *accountRepository) GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	return r.getOne(ctx, querier, `SELECT `+accountColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *accountRepository) GetAccountByUsernameTx(ctx context.Context, querier domain.Querier, username string) (*domain.Account, error) {
	return r.getOne(ctx, querier, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username)
}

func (r *accountRepository) getOne(ctx context.Context, querier domain.Querier, query string, arg interface{}) (*domain.Account, error) {
	account := &domain.Account{}
	if err := querier.GetContext(ctx, account, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %v: %w", arg, database.ClassifyError(err))
	}
	return account, nil
}

func (r *accountRepository) ListAccountsTx(ctx context.Context, querier domain.Querier, skip, limit int) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM users
		ORDER BY id ASC
		OFFSET $1 LIMIT $2
	`
	accounts := []domain.Account{}
	if err := querier.SelectContext(ctx, &accounts, query, skip, limit); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", database.ClassifyError(err))
	}
	return accounts, nil
}

// ApplyBalanceDeltaTx adds delta (negative for a debit) to the balance and
// returns the updated row. A debit that would go below zero trips the table's
// CHECK constraint and is reported as domain.ErrInsufficientFunds.
func (r *accountRepository) ApplyBalanceDeltaTx(ctx context.Context, querier domain.Querier, id int64, delta decimal.Decimal) (*domain.Account, error) {
	query := `
		UPDATE users
		SET balance = balance + $1
		WHERE id = $2
		RETURNING ` + accountColumns

	account := &domain.Account{}
	if err := querier.GetContext(ctx, account, query, delta, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23514" && pgErr.Constraint == constraintBalanceNonNegative {
			return nil, domain.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to update account balance for %d: %w", id, database.ClassifyError(err))
	}
	return account, nil
}

func (r *accountRepository) UpdatePasswordTx(ctx context.Context, querier domain.Querier, id int64, hashedPassword string) error {
	res, err := querier.ExecContext(ctx, `UPDATE users SET hashed_password = $1 WHERE id = $2`, hashedPassword, id)
	if err != nil {
		return fmt.Errorf("failed to update password for account %d: %w", id, database.ClassifyError(err))
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
