package port

import (
	"context"
	"time"
)

// MessageHandler processes one delivered payload.
type MessageHandler func(ctx context.Context, payload []byte) error

type EventPublisher interface {
	// Publish sends payload to topic. key groups related messages on brokers
	// that partition by key
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

type EventSubscriber interface {
	// Subscribe delivers every message on topic to handler until ctx is done.
	// Blocks for the lifetime of the subscription.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
}

// DeadLetter is a message the projection gave up on.
type DeadLetter struct {
	Topic    string    `json:"topic"`
	Payload  string    `json:"payload"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

type DeadLetterSink interface {
	// SendDeadLetter parks a poison message for offline inspection
	SendDeadLetter(ctx context.Context, dl DeadLetter) error
}
