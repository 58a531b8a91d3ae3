package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rl1809/inventory-projection/internal/port"
)

// ErrBusUnavailable is returned while the breaker is open.
var ErrBusUnavailable = fmt.Errorf("%w: circuit breaker is open", port.ErrBusUnavailable)

type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// BreakerPublisher stops hammering a failing broker. While open, publishes
// fail fast and the outbox schedules them for a later cycle.
type BreakerPublisher struct {
	next port.EventPublisher
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(next port.EventPublisher, cfg BreakerConfig, logger *slog.Logger) *BreakerPublisher {
	if cfg.Name == "" {
		cfg.Name = "bus-publish"
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerPublisher{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, topic, key, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBusUnavailable
	}
	return err
}

func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}
