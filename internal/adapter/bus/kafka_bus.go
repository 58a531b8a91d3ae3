package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/rl1809/inventory-projection/internal/port"
)

type KafkaConfig struct {
	Brokers      []string
	GroupID      string
	WriteTimeout time.Duration
}

// KafkaBus partitions by message key, so events of one aggregate stay in
// order within a partition. Offsets are committed only after the handler
// returns nil.
type KafkaBus struct {
	cfg    KafkaConfig
	writer *kafkago.Writer
	logger *slog.Logger
}

func NewKafkaBus(cfg KafkaConfig, logger *slog.Logger) *KafkaBus {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		MaxAttempts:            3,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaBus{cfg: cfg, writer: w, logger: logger.With("component", "kafka_bus")}
}

func (k *KafkaBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	err := k.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return classifyPublishError(topic, err)
	}
	return nil
}

// classifyPublishError treats everything except a non-retriable broker
// error (message too large, invalid record) as the broker being unavailable.
func classifyPublishError(topic string, err error) error {
	if permanentKafkaError(err) {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	var writeErrs kafkago.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil && permanentKafkaError(e) {
				return fmt.Errorf("kafka publish %s: %w", topic, err)
			}
		}
	}
	return fmt.Errorf("%w: kafka publish %s: %w", port.ErrBusUnavailable, topic, err)
}

func permanentKafkaError(err error) bool {
	var kerr kafkago.Error
	return errors.As(err, &kerr) && !kerr.Temporary()
}

func (k *KafkaBus) Subscribe(ctx context.Context, topic string, handler port.MessageHandler) error {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        k.cfg.Brokers,
		GroupID:        k.cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
	})
	defer r.Close()
	k.logger.Info("subscribed", "topic", topic, "group", k.cfg.GroupID)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kafka fetch %s: %w", topic, err)
		}

		if err := handler(ctx, m.Value); err != nil {
			// not committed; the group redelivers it
			return err
		}

		if err := r.CommitMessages(ctx, m); err != nil {
			k.logger.Warn("failed to commit offset", "topic", topic, "offset", m.Offset, "error", err)
		}
	}
}

func (k *KafkaBus) SendDeadLetter(ctx context.Context, dl port.DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafkago.Message{
		Topic: DeadLetterTopic(dl.Topic),
		Value: data,
		Time:  dl.FailedAt,
	})
}

func (k *KafkaBus) Close() error {
	return k.writer.Close()
}
