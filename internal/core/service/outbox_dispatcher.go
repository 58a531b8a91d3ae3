package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/port"
)

const (
	DefaultTopic           = "inventory.events"
	DefaultBatchSize       = 100
	DefaultPollInterval    = 150 * time.Millisecond
	defaultDispatchSaveTTL = 5 * time.Second
)

type DispatcherConfig struct {
	Topic        string
	BatchSize    int
	PollInterval time.Duration
	Retry        domain.RetryPolicy
	SaveTimeout  time.Duration
}

// DispatchStats summarizes one dispatcher cycle.
type DispatchStats struct {
	Fetched      int
	Published    int
	Failed       int
	DeadLettered int
}

// OutboxDispatcher publishes undispatched outbox messages to the bus. Delivery
// is at-least-once: a crash between publish and save republishes the batch.
type OutboxDispatcher struct {
	outbox    port.OutboxRepository
	publisher port.EventPublisher
	cfg       DispatcherConfig
	logger    *slog.Logger
	recorder  Recorder
	now       func() time.Time
}

func NewOutboxDispatcher(outbox port.OutboxRepository, publisher port.EventPublisher, cfg DispatcherConfig, logger *slog.Logger, recorder Recorder) *OutboxDispatcher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultDispatchSaveTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxDispatcher{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "outbox_dispatcher"),
		recorder:  recorderOrNop(recorder),
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled. Cycle errors are logged and the next
// cycle retries.
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	d.logger.Info("outbox dispatcher started",
		"topic", d.cfg.Topic, "batch_size", d.cfg.BatchSize, "poll_interval", d.cfg.PollInterval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-timer.C:
		}

		if _, err := d.RunOnce(ctx); err != nil {
			d.logger.Warn("outbox dispatch cycle failed", "error", err)
		}
		timer.Reset(d.cfg.PollInterval)
	}
}

// RunOnce dispatches a single batch. Messages not attempted because ctx was
// cancelled mid-batch stay untouched and are picked up again later.
func (d *OutboxDispatcher) RunOnce(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	start := time.Now()
	batch, err := d.outbox.FetchPending(ctx, d.cfg.BatchSize, d.now())
	if err != nil {
		return stats, fmt.Errorf("fetch pending outbox: %w", err)
	}
	stats.Fetched = len(batch)
	if len(batch) == 0 {
		return stats, nil
	}

	attempted := 0
	for i := range batch {
		if ctx.Err() != nil {
			break
		}
		msg := &batch[i]

		err := d.publisher.Publish(ctx, d.cfg.Topic, msg.Key(), msg.Payload)
		if err != nil && ctx.Err() != nil {
			// shutdown interrupted the publish; leave it for the next start
			break
		}
		attempted++

		if err == nil {
			msg.MarkDispatched()
			stats.Published++
			d.recorder.OutboxDispatched(OutcomePublished)
			continue
		}

		if errors.Is(err, port.ErrBusUnavailable) {
			msg.MarkDeferred(err, d.cfg.Retry, d.now())
		} else {
			msg.MarkFailed(err, d.cfg.Retry, d.now())
		}
		if msg.DeadLettered {
			stats.DeadLettered++
			d.recorder.OutboxDispatched(OutcomeDeadLettered)
			d.logger.Error("outbox message dead-lettered",
				"outbox_id", msg.ID, "attempts", msg.DispatchAttempts, "error", err)
			continue
		}
		stats.Failed++
		d.recorder.OutboxDispatched(OutcomeFailed)
		d.logger.Warn("failed to publish outbox message",
			"outbox_id", msg.ID, "attempts", msg.DispatchAttempts,
			"next_attempt_at", msg.NextAttemptAt, "error", err)
	}

	if attempted == 0 {
		return stats, nil
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SaveTimeout)
	defer cancel()
	if err := d.outbox.SaveDispatchResults(saveCtx, batch[:attempted]); err != nil {
		return stats, fmt.Errorf("save dispatch results: %w", err)
	}

	d.recorder.DispatchCycleObserved(time.Since(start), attempted)
	d.logger.Debug("outbox batch dispatched",
		"fetched", stats.Fetched, "published", stats.Published,
		"failed", stats.Failed, "dead_lettered", stats.DeadLettered)
	return stats, nil
}
