package transactions_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
	"github.com/skv43r/transaction-service/internal/repository/transactions_repo/options"
)

var ErrTransactionNotFound = errors.New("transaction not found")

const transactionColumns = "id, sender_id, receiver_id, amount, status, created_at"

type transactionRepository struct{}

func NewTransactionRepository() *transactionRepository {
	return &transactionRepository{}
}

var _ TransactionRepository = (*transactionRepository)(nil)

// CreateTx appends txn to the log and fills in its id.
func (r *transactionRepository) CreateTx(ctx context.Context, querier domain.Querier, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (sender_id, receiver_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := querier.QueryRowxContext(ctx, query,
		txn.SenderID, txn.ReceiverID, txn.Amount, string(txn.Status), txn.CreatedAt,
	).Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction %d -> %d: %w", txn.SenderID, txn.ReceiverID, database.ClassifyError(err))
	}
	return nil
}

// GetByIDTx is a single-id FindTx.
func (r *transactionRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Transaction, error) {
	found, err := r.FindTx(ctx, querier, options.NewTransactionOptions().SetIDs(id).SetPage(0, 1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrTransactionNotFound, id)
	}
	return &found[0], nil
}

// FindTx returns one page of the log matching opts, oldest first. Filters are
// combined with AND; a nil opts lists everything from the start with the
// default page size.
func (r *transactionRepository) FindTx(ctx context.Context, querier domain.Querier, opts *options.TransactionOptions) ([]domain.Transaction, error) {
	if opts == nil {
		opts = options.NewTransactionOptions()
	}

	var where []string
	namedParams := make(map[string]interface{})

	addFilter := func(stmt, key string, value interface{}) {
		where = append(where, stmt)
		namedParams[key] = value
	}

	if len(opts.IDs) > 0 {
		addFilter("id IN (:ids)", "ids", opts.IDs)
	}
	if opts.Status != nil {
		addFilter("status = :status", "status", string(*opts.Status))
	}
	if opts.ParticipantID != nil {
		addFilter("(sender_id = :participant_id OR receiver_id = :participant_id)", "participant_id", *opts.ParticipantID)
	}
	if opts.Timestamp != nil {
		addRange(opts.Timestamp, "created_at", addFilter)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query = fmt.Sprintf("%s WHERE %s", query, strings.Join(where, " AND "))
	}
	query += " ORDER BY id ASC OFFSET :skip LIMIT :limit"
	namedParams["skip"] = opts.Skip
	namedParams["limit"] = opts.Limit

	query, args, err := sqlx.Named(query, namedParams)
	if err != nil {
		return nil, fmt.Errorf("failed to bind transaction filters: %w", err)
	}
	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand transaction filters: %w", err)
	}
	query = querier.Rebind(query)

	result := []domain.Transaction{}
	if err := querier.SelectContext(ctx, &result, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", database.ClassifyError(err))
	}
	for i := range result {
		result[i].CreatedAt = result[i].CreatedAt.UTC()
	}
	return result, nil
}

func addRange(rng options.Range, column string, addFilter func(stmt, key string, value interface{})) {
	if from, ok := rng.From(); ok {
		key := column + "_from"
		addFilter(fmt.Sprintf("%s >= :%s", column, key), key, from)
	}
	if to, ok := rng.To(); ok {
		key := column + "_to"
		addFilter(fmt.Sprintf("%s <= :%s", column, key), key, to)
	}
}
