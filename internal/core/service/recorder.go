package service

import "time"

// Recorder receives pipeline outcomes for metrics.
type Recorder interface {
	CommandHandled(outcome string)
	OutboxDispatched(outcome string)
	DispatchCycleObserved(elapsed time.Duration, batchSize int)
	ProjectionHandled(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) CommandHandled(string)                    {}
func (nopRecorder) OutboxDispatched(string)                  {}
func (nopRecorder) DispatchCycleObserved(time.Duration, int) {}
func (nopRecorder) ProjectionHandled(string)                 {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// Outcome labels shared with the metrics adapter.
const (
	OutcomeOK           = "ok"
	OutcomeReplayed     = "replayed"
	OutcomeNotFound     = "not_found"
	OutcomeRejected     = "rejected"
	OutcomeInvalid      = "invalid"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
	OutcomePublished    = "published"
	OutcomeFailed       = "failed"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeApplied      = "applied"
	OutcomeStale        = "stale"
	OutcomeIgnored      = "ignored"
	OutcomeMalformed    = "malformed"
)
