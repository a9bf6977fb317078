package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/skv43r/transaction-service/internal/domain"
)

type fakeOutboxRepo struct {
	pending []domain.OutboxMessage
	updated map[string]domain.OutboxMessageStatus
}

func (f *fakeOutboxRepo) GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutboxRepo) UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error {
	if f.updated == nil {
		f.updated = make(map[string]domain.OutboxMessageStatus)
	}
	f.updated[id] = status
	return nil
}

type fakeProducer struct {
	failOn string
	sent   []string
}

func (f *fakeProducer) Produce(ctx context.Context, key, topic string, value []byte) error {
	if key == f.failOn {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, key)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func pending(keys ...string) []domain.OutboxMessage {
	var messages []domain.OutboxMessage
	for _, k := range keys {
		messages = append(messages, domain.OutboxMessage{ID: "msg-" + k, Key: k, Topic: "transfers", Status: domain.OutboxStatusPending})
	}
	return messages
}

func TestProcessOnceMarksSent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeOutboxRepo{pending: pending("1", "2")}
	producer := &fakeProducer{}
	p := NewProcessor(db, repo, producer, time.Second, time.Second, 10, zap.NewNop())

	sent, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"1", "2"}, producer.sent)
	assert.Equal(t, domain.OutboxStatusSent, repo.updated["msg-1"])
	assert.Equal(t, domain.OutboxStatusSent, repo.updated["msg-2"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessOnceStopsAtFirstFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	core, logs := observer.New(zapcore.WarnLevel)
	repo := &fakeOutboxRepo{pending: pending("1", "2", "3")}
	producer := &fakeProducer{failOn: "2"}
	p := NewProcessor(db, repo, producer, time.Second, time.Second, 10, zap.New(core))

	sent, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"1"}, producer.sent)
	assert.NotContains(t, repo.updated, "msg-2")
	assert.NotContains(t, repo.updated, "msg-3")
	assert.Equal(t, 1, logs.FilterMessage("Failed to send outbox message, will retry on next poll").Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartStopsOnCancel(t *testing.T) {
	db, _ := newMockDB(t)
	p := NewProcessor(db, &fakeOutboxRepo{}, &fakeProducer{}, time.Hour, time.Second, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop after cancel")
	}
}
