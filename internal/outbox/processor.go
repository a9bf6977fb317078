package outbox

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
	kafkaInfra "github.com/skv43r/transaction-service/internal/infrastructure/kafka"
)

type OutboxRepository interface {
	GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error
}

type Processor struct {
	db            *sqlx.DB
	outboxRepo    OutboxRepository
	kafkaProducer kafkaInfra.Producer
	pollInterval  time.Duration
	pollTimeout   time.Duration
	batchSize     int
	logger        *zap.Logger
}

func NewProcessor(
	db *sqlx.DB,
	outboxRepo OutboxRepository,
	kafkaProducer kafkaInfra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{
		db:            db,
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// Start polls the outbox until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessOnce publishes one batch of pending messages and returns how many
// were sent. The batch stays locked for the whole pass; publishing stops at the
// first failure so messages for the same key keep their order.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	batchCtx := ctx
	if p.pollTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, p.pollTimeout)
		defer cancel()
	}

	sent := 0
	err := database.RunInTx(batchCtx, p.db, nil, func(tx *sqlx.Tx) error {
		messages, err := p.outboxRepo.GetPendingMessagesTx(batchCtx, tx, p.batchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}
		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		for _, msg := range messages {
			if err := p.kafkaProducer.Produce(batchCtx, msg.Key, msg.Topic, msg.Payload); err != nil {
				p.logger.Warn("Failed to send outbox message, will retry on next poll",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.Error(err))
				return nil
			}
			if err := p.outboxRepo.UpdateMessageStatusTx(batchCtx, tx, msg.ID, domain.OutboxStatusSent); err != nil {
				return err
			}
			sent++
			p.logger.Info("Outbox message published",
				zap.String("message_id", msg.ID),
				zap.String("message_type", msg.MessageType),
				zap.String("topic", msg.Topic))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}
