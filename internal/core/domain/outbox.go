package domain

import "time"

// OutboxMessage is one durable, not yet confirmed event. It is written in the
// same transaction as the aggregate change it describes and is never deleted.
type OutboxMessage struct {
	ID               string
	OccurredAt       time.Time
	EventType        string
	TenantID         string
	AggregateID      string
	CommandID        string
	Payload          []byte
	Dispatched       bool
	DispatchAttempts int
	NextAttemptAt    time.Time
	LastError        string
	DeadLettered     bool
}

// NewOutboxMessage wraps a serialized event for the outbox table.
func NewOutboxMessage(evt InventoryEvent) (OutboxMessage, error) {
	payload, err := evt.Marshal()
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:            evt.EventID,
		OccurredAt:    evt.OccurredAt,
		EventType:     evt.EventType,
		TenantID:      evt.TenantID,
		AggregateID:   evt.AggregateID,
		CommandID:     evt.CommandID,
		Payload:       payload,
		NextAttemptAt: evt.OccurredAt,
	}, nil
}

// MarkDispatched records a successful publish.
func (m *OutboxMessage) MarkDispatched() {
	m.Dispatched = true
	m.DispatchAttempts++
	m.LastError = ""
}

// MarkFailed records a failed publish and schedules the next attempt, or
// parks the message once the policy gives up on it.
func (m *OutboxMessage) MarkFailed(err error, policy RetryPolicy, now time.Time) {
	m.DispatchAttempts++
	if err != nil {
		m.LastError = err.Error()
	}
	if policy.Exhausted(m.DispatchAttempts) {
		m.DeadLettered = true
		return
	}
	m.NextAttemptAt = now.Add(policy.Backoff(m.DispatchAttempts))
}

// MarkDeferred records a publish that failed because the bus was down. The
// message backs off like any failure but is never dead-lettered for it.
func (m *OutboxMessage) MarkDeferred(err error, policy RetryPolicy, now time.Time) {
	m.DispatchAttempts++
	if err != nil {
		m.LastError = err.Error()
	}
	m.NextAttemptAt = now.Add(policy.Backoff(m.DispatchAttempts))
}

// Key matches InventoryEvent.Key for the payload it carries.
func (m OutboxMessage) Key() string {
	return m.TenantID + ":" + m.AggregateID
}
