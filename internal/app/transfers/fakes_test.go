package transfers

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/repository/idempotency_repo"
	"github.com/skv43r/transaction-service/internal/repository/transactions_repo"
	"github.com/skv43r/transaction-service/internal/repository/transactions_repo/options"
)

type fakeAccounts struct {
	mu        sync.Mutex
	accounts  map[int64]*domain.Account
	lockOrder []int64
	debits    int
	// returned, one per call, by GetAccountForUpdateTx before it behaves normally
	lockErrs []error
	// runs once, before the first lock is granted
	beforeLock func()
}

func newFakeAccounts(balances map[int64]string) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[int64]*domain.Account)}
	for id, b := range balances {
		f.accounts[id] = &domain.Account{ID: id, Balance: decimal.RequireFromString(b)}
	}
	return f
}

func (f *fakeAccounts) balance(id int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id].Balance
}

func (f *fakeAccounts) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	panic("not used by transfers")
}

func (f *fakeAccounts) GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	f.mu.Lock()
	if hook := f.beforeLock; hook != nil {
		f.beforeLock = nil
		f.mu.Unlock()
		hook()
		f.mu.Lock()
	}
	if len(f.lockErrs) > 0 {
		err := f.lockErrs[0]
		f.lockErrs = f.lockErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.lockOrder = append(f.lockOrder, id)
	f.mu.Unlock()
	return f.GetAccountTx(ctx, querier, id)
}

func (f *fakeAccounts) GetAccountByUsernameTx(ctx context.Context, querier domain.Querier, username string) (*domain.Account, error) {
	panic("not used by transfers")
}

func (f *fakeAccounts) ListAccountsTx(ctx context.Context, querier domain.Querier, skip, limit int) ([]domain.Account, error) {
	panic("not used by transfers")
}

func (f *fakeAccounts) ApplyBalanceDeltaTx(ctx context.Context, querier domain.Querier, id int64, delta decimal.Decimal) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return nil, domain.ErrInsufficientFunds
	}
	if delta.IsNegative() {
		f.debits++
	}
	a.Balance = next
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) UpdatePasswordTx(ctx context.Context, querier domain.Querier, id int64, hashedPassword string) error {
	panic("not used by transfers")
}

type fakeTransactions struct {
	mu       sync.Mutex
	rows     []domain.Transaction
	lastOpts *options.TransactionOptions
}

func (f *fakeTransactions) CreateTx(ctx context.Context, querier domain.Querier, txn *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *txn)
	return nil
}

func (f *fakeTransactions) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, transactions_repo.ErrTransactionNotFound
}

func (f *fakeTransactions) FindTx(ctx context.Context, querier domain.Querier, opts *options.TransactionOptions) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	return append([]domain.Transaction(nil), f.rows...), nil
}

func (f *fakeTransactions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeOutbox struct {
	messages []domain.OutboxMessage
}

func (f *fakeOutbox) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeOutbox) GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	return f.messages, nil
}

func (f *fakeOutbox) UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error {
	return nil
}

type idemKey struct {
	caller int64
	key    string
}

type fakeIdempotency struct {
	records map[idemKey]domain.IdempotencyRecord
}

func (f *fakeIdempotency) GetKeyTx(ctx context.Context, querier domain.Querier, callerID int64, key string) (*domain.IdempotencyRecord, error) {
	r, ok := f.records[idemKey{callerID, key}]
	if !ok {
		return nil, idempotency_repo.ErrKeyNotFound
	}
	return &r, nil
}

func (f *fakeIdempotency) CreateKeyTx(ctx context.Context, querier domain.Querier, record *domain.IdempotencyRecord) error {
	if f.records == nil {
		f.records = make(map[idemKey]domain.IdempotencyRecord)
	}
	f.records[idemKey{record.CallerID, record.Key}] = *record
	return nil
}
