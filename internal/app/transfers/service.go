package transfers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
	"github.com/skv43r/transaction-service/internal/outbox"
	"github.com/skv43r/transaction-service/internal/repository/accounts_repo"
	"github.com/skv43r/transaction-service/internal/repository/idempotency_repo"
	"github.com/skv43r/transaction-service/internal/repository/outbox_repo"
	"github.com/skv43r/transaction-service/internal/repository/transactions_repo"
	"github.com/skv43r/transaction-service/internal/repository/transactions_repo/options"
)

type TransferRequest struct {
	CallerID   int64
	ReceiverID int64
	Amount     decimal.Decimal
	// optional; repeats with the same key replay the first result
	IdempotencyKey string
}

type ListQuery struct {
	Skip      int
	Limit     int
	Status    *domain.TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
	// nil lists every account's transactions
	ParticipantID *int64
}

type TransferService interface {
	ExecuteTransfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, q ListQuery) ([]domain.Transaction, error)
	GetBalance(ctx context.Context, accountID int64) (*domain.Account, error)
}

type Settings struct {
	LockTimeout    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// topic for transfer events; empty skips writing to the outbox
	EventsTopic string
}

type transferService struct {
	db              *sqlx.DB
	accountRepo     accounts_repo.AccountRepository
	transactionRepo transactions_repo.TransactionRepository
	outboxRepo      outbox_repo.OutboxRepository
	idempotencyRepo idempotency_repo.IdempotencyRepository
	settings        Settings
	now             func() time.Time
	logger          *zap.Logger
}

func NewTransferService(
	db *sqlx.DB,
	accountRepo accounts_repo.AccountRepository,
	transactionRepo transactions_repo.TransactionRepository,
	outboxRepo outbox_repo.OutboxRepository,
	idempotencyRepo idempotency_repo.IdempotencyRepository,
	settings Settings,
	logger *zap.Logger,
) TransferService {
	return newTransferService(db, accountRepo, transactionRepo, outboxRepo, idempotencyRepo, settings, logger)
}

func newTransferService(
	db *sqlx.DB,
	accountRepo accounts_repo.AccountRepository,
	transactionRepo transactions_repo.TransactionRepository,
	outboxRepo outbox_repo.OutboxRepository,
	idempotencyRepo idempotency_repo.IdempotencyRepository,
	settings Settings,
	logger *zap.Logger,
) *transferService {
	if settings.LockTimeout <= 0 {
		settings.LockTimeout = 2 * time.Second
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	if settings.InitialBackoff <= 0 {
		settings.InitialBackoff = 25 * time.Millisecond
	}
	if settings.MaxBackoff <= 0 {
		settings.MaxBackoff = 500 * time.Millisecond
	}
	return &transferService{
		db:              db,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		outboxRepo:      outboxRepo,
		idempotencyRepo: idempotencyRepo,
		settings:        settings,
		now:             time.Now,
		logger:          logger,
	}
}

// ExecuteTransfer moves req.Amount from the caller to the receiver.
//
// Checks run in a fixed order and the first failure wins: positive amount,
// not a self-transfer, receiver exists, sender balance covers the amount. The
// balance check and both balance updates happen under row locks inside one
// read-committed transaction together with the transaction log insert, so a
// concurrent transfer on either account can never act on a stale balance.
// Lock waits are bounded; conflicts are retried with backoff and surface as
// domain.ErrConcurrencyConflict once the retries run out.
func (s *transferService) ExecuteTransfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	log := s.logger.With(
		zap.Int64("caller_id", req.CallerID),
		zap.Int64("receiver_id", req.ReceiverID),
		zap.String("amount", req.Amount.String()),
	)
	log.Info("Transfer requested")

	if !req.Amount.IsPositive() {
		log.Warn("Transfer rejected: amount is not positive")
		return nil, domain.ErrInvalidAmount
	}
	if req.CallerID == req.ReceiverID {
		log.Warn("Transfer rejected: caller tried to transfer funds to themselves")
		return nil, domain.ErrSelfTransfer
	}

	attempt := 0
	operation := func() (*domain.Transaction, error) {
		attempt++
		txn, err := s.executeTransferOnce(ctx, req)
		if err != nil {
			if database.IsRetryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return txn, nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Transfer hit a concurrency conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	txn, err := backoff.RetryNotifyWithData(operation, s.newBackOff(ctx), notify)
	if err != nil {
		switch {
		case database.IsRetryable(err):
			log.Error("Transfer abandoned after retries", zap.Int("attempts", attempt), zap.Error(err))
		case errors.Is(err, domain.ErrReceiverNotFound),
			errors.Is(err, domain.ErrSenderNotFound),
			errors.Is(err, domain.ErrInsufficientFunds),
			errors.Is(err, domain.ErrIdempotencyKeyReused):
			log.Warn("Transfer rejected", zap.Error(err))
		default:
			log.Error("Transfer failed", zap.Error(err))
		}
		return nil, err
	}

	log.Info("Transfer completed",
		zap.Int64("transaction_id", txn.ID),
		zap.Int("attempts", attempt))
	return txn, nil
}

func (s *transferService) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.settings.InitialBackoff
	eb.MaxInterval = s.settings.MaxBackoff
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.settings.MaxRetries)), ctx)
}

func (s *transferService) executeTransferOnce(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	var result *domain.Transaction
	err := database.RunInTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sqlx.Tx) error {
		if err := database.SetLockTimeout(ctx, tx, fmt.Sprintf("%dms", s.settings.LockTimeout.Milliseconds())); err != nil {
			return err
		}

		// The key is read under the sender lock, so a duplicate that was
		// queued behind the original sees its committed key and replays it.
		locked, err := s.lockAccountsTx(ctx, tx, req.CallerID, req.ReceiverID)
		if err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			replayed, err := s.replayTx(ctx, tx, req)
			if err != nil {
				return err
			}
			if replayed != nil {
				result = replayed
				return nil
			}
		}

		txn, err := s.transferTx(ctx, tx, req, locked)
		if err != nil {
			return err
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *transferService) replayTx(ctx context.Context, querier domain.Querier, req TransferRequest) (*domain.Transaction, error) {
	record, err := s.idempotencyRepo.GetKeyTx(ctx, querier, req.CallerID, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, idempotency_repo.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !record.Matches(req.ReceiverID, req.Amount) {
		return nil, domain.ErrIdempotencyKeyReused
	}

	txn, err := s.transactionRepo.GetByIDTx(ctx, querier, record.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %d for idempotency key: %w", record.TransactionID, err)
	}
	s.logger.Info("Transfer replayed from idempotency key",
		zap.Int64("caller_id", req.CallerID),
		zap.Int64("transaction_id", txn.ID))
	return txn, nil
}

func (s *transferService) transferTx(ctx context.Context, querier domain.Querier, req TransferRequest, locked map[int64]*domain.Account) (*domain.Transaction, error) {
	receiver, ok := locked[req.ReceiverID]
	if !ok {
		return nil, domain.ErrReceiverNotFound
	}
	sender, ok := locked[req.CallerID]
	if !ok {
		return nil, domain.ErrSenderNotFound
	}
	if !sender.CanDebit(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}

	if _, err := s.accountRepo.ApplyBalanceDeltaTx(ctx, querier, sender.ID, req.Amount.Neg()); err != nil {
		return nil, fmt.Errorf("failed to debit account %d: %w", sender.ID, err)
	}
	if _, err := s.accountRepo.ApplyBalanceDeltaTx(ctx, querier, receiver.ID, req.Amount); err != nil {
		return nil, fmt.Errorf("failed to credit account %d: %w", receiver.ID, err)
	}

	txn := &domain.Transaction{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     req.Amount,
		Status:     domain.TransactionStatusCompleted,
		CreatedAt:  s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.transactionRepo.CreateTx(ctx, querier, txn); err != nil {
		return nil, err
	}

	if s.settings.EventsTopic != "" {
		msg, err := outbox.NewTransferCompletedMessage(txn, s.settings.EventsTopic)
		if err != nil {
			return nil, err
		}
		if err := s.outboxRepo.CreateMessageTx(ctx, querier, msg); err != nil {
			return nil, err
		}
	}

	if req.IdempotencyKey != "" {
		record := &domain.IdempotencyRecord{
			CallerID:      req.CallerID,
			Key:           req.IdempotencyKey,
			ReceiverID:    req.ReceiverID,
			Amount:        req.Amount,
			TransactionID: txn.ID,
			CreatedAt:     txn.CreatedAt,
		}
		if err := s.idempotencyRepo.CreateKeyTx(ctx, querier, record); err != nil {
			return nil, err
		}
	}

	return txn, nil
}

// lockAccountsTx takes FOR UPDATE locks on the given accounts in ascending id
// order, so two transfers over the same pair always queue instead of
// deadlocking. Missing accounts are left out of the result.
func (s *transferService) lockAccountsTx(ctx context.Context, querier domain.Querier, ids ...int64) (map[int64]*domain.Account, error) {
	ordered := append([]int64(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	locked := make(map[int64]*domain.Account, len(ordered))
	for _, id := range ordered {
		account, err := s.accountRepo.GetAccountForUpdateTx(ctx, querier, id)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		locked[id] = account
	}
	return locked, nil
}

func (s *transferService) ListTransactions(ctx context.Context, q ListQuery) ([]domain.Transaction, error) {
	if q.Skip < 0 || q.Limit <= 0 {
		return nil, domain.ErrInvalidPage
	}
	if q.Status != nil && !q.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	opts := options.NewTransactionOptions().SetPage(q.Skip, q.Limit)
	if q.Status != nil {
		opts.SetStatus(*q.Status)
	}
	if q.StartDate != nil || q.EndDate != nil {
		opts.SetTimeRange(options.DayRange(q.StartDate, q.EndDate))
	}
	if q.ParticipantID != nil {
		opts.SetParticipant(*q.ParticipantID)
	}

	result, err := s.transactionRepo.FindTx(ctx, s.db, opts)
	if err != nil {
		s.logger.Error("Failed to list transactions", zap.Error(err))
		return nil, err
	}
	s.logger.Debug("Transactions listed",
		zap.Int("skip", q.Skip),
		zap.Int("limit", q.Limit),
		zap.Int("count", len(result)))
	return result, nil
}

func (s *transferService) GetBalance(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountTx(ctx, s.db, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for account %d: %w", accountID, err)
	}
	return account, nil
}
