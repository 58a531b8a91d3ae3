package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/port"
)

const defaultResubscribeDelay = time.Second

type ProjectionConfig struct {
	Topic            string
	Retry            domain.RetryPolicy
	ResubscribeDelay time.Duration
}

// ProjectionSubscriber keeps the read model in step with published events.
// Every message is handled on its own; failures are logged, retried per the
// policy and finally dead-lettered, never stopping the subscription.
type ProjectionSubscriber struct {
	subscriber  port.EventSubscriber
	reads       port.ReadModelRepository
	deadLetters port.DeadLetterSink
	cfg         ProjectionConfig
	logger      *slog.Logger
	recorder    Recorder
	now         func() time.Time
}

func NewProjectionSubscriber(subscriber port.EventSubscriber, reads port.ReadModelRepository, deadLetters port.DeadLetterSink, cfg ProjectionConfig, logger *slog.Logger, recorder Recorder) *ProjectionSubscriber {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ResubscribeDelay <= 0 {
		cfg.ResubscribeDelay = defaultResubscribeDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectionSubscriber{
		subscriber:  subscriber,
		reads:       reads,
		deadLetters: deadLetters,
		cfg:         cfg,
		logger:      logger.With("component", "projection_subscriber"),
		recorder:    recorderOrNop(recorder),
		now:         time.Now,
	}
}

// Run subscribes until ctx is cancelled, resubscribing if the bus drops the
// subscription.
func (p *ProjectionSubscriber) Run(ctx context.Context) error {
	p.logger.Info("projection subscriber started", "topic", p.cfg.Topic)
	for {
		err := p.subscriber.Subscribe(ctx, p.cfg.Topic, p.Handle)
		if ctx.Err() != nil {
			p.logger.Info("projection subscriber stopped")
			return nil
		}
		p.logger.Warn("subscription ended, resubscribing", "topic", p.cfg.Topic, "error", err)
		if err := sleepCtx(ctx, p.cfg.ResubscribeDelay); err != nil {
			p.logger.Info("projection subscriber stopped")
			return nil
		}
	}
}

// Handle applies one bus payload to the read model. It only returns an error
// when ctx is cancelled before the message was settled, so brokers that track
// acknowledgements redeliver it.
func (p *ProjectionSubscriber) Handle(ctx context.Context, payload []byte) error {
	eventType, err := domain.PeekEventType(payload)
	if err != nil {
		p.malformed(ctx, payload, err)
		return nil
	}
	if eventType != domain.EventTypeInventoryAdjusted {
		p.recorder.ProjectionHandled(OutcomeIgnored)
		p.logger.Debug("ignoring event type", "event_type", eventType)
		return nil
	}

	evt, err := domain.DecodeInventoryEvent(payload)
	if err == nil {
		err = validateEvent(evt)
	}
	if err != nil {
		p.malformed(ctx, payload, err)
		return nil
	}

	row := domain.ReadFromEvent(evt, p.now())
	for attempt := 1; ; attempt++ {
		applied, err := p.reads.ApplyProjection(ctx, row)
		if err == nil {
			if applied {
				p.recorder.ProjectionHandled(OutcomeApplied)
			} else {
				p.recorder.ProjectionHandled(OutcomeStale)
				p.logger.Debug("skipping stale event",
					"event_id", evt.EventID, "aggregate_id", evt.AggregateID, "version", evt.Version)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if p.cfg.Retry.Exhausted(attempt) {
			p.recorder.ProjectionHandled(OutcomeDeadLettered)
			p.logger.Error("projection failed, dead-lettering",
				"event_id", evt.EventID, "attempts", attempt, "error", err)
			p.deadLetter(ctx, payload, err)
			return nil
		}

		p.logger.Warn("projection failed, retrying",
			"event_id", evt.EventID, "attempt", attempt, "error", err)
		if err := sleepCtx(ctx, p.cfg.Retry.Backoff(attempt)); err != nil {
			return err
		}
	}
}

func (p *ProjectionSubscriber) malformed(ctx context.Context, payload []byte, cause error) {
	p.recorder.ProjectionHandled(OutcomeMalformed)
	p.logger.Warn("dropping malformed event", "error", cause)
	p.deadLetter(ctx, payload, cause)
}

func (p *ProjectionSubscriber) deadLetter(ctx context.Context, payload []byte, cause error) {
	if p.deadLetters == nil {
		return
	}
	dl := port.DeadLetter{
		Topic:    p.cfg.Topic,
		Payload:  string(payload),
		Error:    cause.Error(),
		FailedAt: p.now().UTC(),
	}
	if err := p.deadLetters.SendDeadLetter(context.WithoutCancel(ctx), dl); err != nil {
		p.logger.Error("failed to store dead letter", "error", err)
	}
}

func validateEvent(evt domain.InventoryEvent) error {
	if evt.TenantID == "" || evt.PartitionID == "" || evt.ResourceName == "" {
		return fmt.Errorf("event %s: tenant, partition and resource name are required", evt.EventID)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
