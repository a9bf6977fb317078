package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrPublisherUnavailable = errors.New("publisher unavailable")

type BreakerSettings struct {
	// consecutive failures that open the breaker
	MaxFailures uint32
	// how long the breaker stays open before letting a probe through
	OpenTimeout time.Duration
}

type breakerProducer struct {
	next   Producer
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerProducer guards next with a circuit breaker so a dead cluster is
// not hammered by every outbox poll.
func NewBreakerProducer(next Producer, settings BreakerSettings, logger *zap.Logger) Producer {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &breakerProducer{next: next, cb: cb, logger: logger}
}

func (p *breakerProducer) Produce(ctx context.Context, key, topic string, value []byte) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.next.Produce(ctx, key, topic, value)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrPublisherUnavailable, err)
	}
	return err
}

func (p *breakerProducer) Close() error {
	return p.next.Close()
}
