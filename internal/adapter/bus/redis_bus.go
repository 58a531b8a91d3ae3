package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-projection/internal/port"
)

// ErrNoReceivers is returned when a publish reached no subscriber. Redis
// pub/sub does not buffer, so the outbox keeps the message and retries.
var ErrNoReceivers = fmt.Errorf("%w: no subscribers received the message", port.ErrBusUnavailable)

type RedisBus struct {
	client          *redis.Client
	requireReceiver bool
	logger          *slog.Logger
}

func NewRedisBus(client *redis.Client, requireReceiver bool, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{
		client:          client,
		requireReceiver: requireReceiver,
		logger:          logger.With("component", "redis_bus"),
	}
}

// Publish ignores key: a Redis channel has a single ordered stream.
func (r *RedisBus) Publish(ctx context.Context, topic, _ string, payload []byte) error {
	receivers, err := r.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		// pub/sub cannot reject a payload, so any error is the connection
		return fmt.Errorf("%w: redis publish %s: %w", port.ErrBusUnavailable, topic, err)
	}
	if receivers == 0 && r.requireReceiver {
		return ErrNoReceivers
	}
	return nil
}

func (r *RedisBus) Subscribe(ctx context.Context, topic string, handler port.MessageHandler) error {
	sub := r.client.Subscribe(ctx, topic)
	defer sub.Close()

	// wait for the subscription to be confirmed so failures surface here
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", topic, err)
	}
	r.logger.Info("subscribed", "topic", topic)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription %s closed", topic)
			}
			if err := handler(ctx, []byte(msg.Payload)); err != nil {
				r.logger.Warn("handler failed", "topic", topic, "error", err)
			}
		}
	}
}

// SendDeadLetter appends to a list named after the dead-letter topic.
func (r *RedisBus) SendDeadLetter(ctx context.Context, dl port.DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, DeadLetterTopic(dl.Topic), data).Err()
}

// DeadLetters returns up to limit parked messages for topic, oldest first.
func (r *RedisBus) DeadLetters(ctx context.Context, topic string, limit int64) ([]port.DeadLetter, error) {
	raw, err := r.client.LRange(ctx, DeadLetterTopic(topic), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]port.DeadLetter, 0, len(raw))
	for _, item := range raw {
		var dl port.DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, nil
}
