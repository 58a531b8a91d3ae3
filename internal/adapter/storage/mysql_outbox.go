package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/inventory-projection/internal/core/domain"
)

const (
	outboxColumns = `id, occurred_at, event_type, tenant_id, aggregate_id, command_id, payload,
		dispatched, dispatch_attempts, next_attempt_at, last_error, dead_lettered`
	maxLastErrorLen = 1024
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutbox(row rowScanner) (domain.OutboxMessage, error) {
	var msg domain.OutboxMessage
	err := row.Scan(&msg.ID, &msg.OccurredAt, &msg.EventType, &msg.TenantID, &msg.AggregateID,
		&msg.CommandID, &msg.Payload, &msg.Dispatched, &msg.DispatchAttempts, &msg.NextAttemptAt,
		&msg.LastError, &msg.DeadLettered)
	return msg, err
}

func (m *MySQLAdapter) FetchPending(ctx context.Context, limit int, now time.Time) ([]domain.OutboxMessage, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_messages
		WHERE dispatched = FALSE AND dead_lettered = FALSE AND next_attempt_at <= ?
		ORDER BY occurred_at ASC
		LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.OutboxMessage, 0, limit)
	for rows.Next() {
		msg, err := scanOutbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending outbox: %w", err)
	}
	return msgs, nil
}

func (m *MySQLAdapter) SaveDispatchResults(ctx context.Context, msgs []domain.OutboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE outbox_messages
		SET dispatched = ?, dispatch_attempts = ?, next_attempt_at = ?, last_error = ?, dead_lettered = ?
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare dispatch update: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		if _, err := stmt.ExecContext(ctx, msg.Dispatched, msg.DispatchAttempts, msg.NextAttemptAt.UTC(),
			truncate(msg.LastError, maxLastErrorLen), msg.DeadLettered, msg.ID); err != nil {
			return fmt.Errorf("update outbox message %s: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
