package messaging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
)

const localPollInterval = 250 * time.Millisecond

// Local is a visibility-timeout queue stored in the state database.
type Local struct {
	db         *statedb.DB
	name       string
	visibility time.Duration
	now        func() time.Time
}

// NewLocal returns a queue named name. Received messages stay hidden for
// visibility before they are redelivered.
func NewLocal(db *statedb.DB, name string, visibility time.Duration) *Local {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	if name == "" {
		name = "summaries"
	}
	return &Local{db: db, name: name, visibility: visibility, now: time.Now}
}

// SetClock overrides the time source for tests.
func (q *Local) SetClock(now func() time.Time) {
	if now != nil {
		q.now = now
	}
}

// Send enqueues msg as immediately visible.
func (q *Local) Send(ctx context.Context, msg Message) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	now := q.now().UnixMilli()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO queue_messages (id, queue_name, body, receive_count, visible_at, created_at) VALUES (?, ?, ?, 0, ?, ?)`,
		uuid.NewString(), q.name, body, now, now,
	)
	if err != nil {
		return services.Wrap(services.ErrTransient, "messaging", "send", "Could not enqueue message", err)
	}
	return nil
}

// Receive claims up to max visible messages, polling until wait elapses when
// the queue is empty.
func (q *Local) Receive(ctx context.Context, max int, wait time.Duration) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}
	deadline := q.now().Add(wait)
	for {
		deliveries, err := q.claim(ctx, max)
		if err != nil || len(deliveries) > 0 {
			return deliveries, err
		}
		if !q.now().Before(deadline) {
			return nil, nil
		}
		timer := time.NewTimer(localPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (q *Local) claim(ctx context.Context, max int) ([]Delivery, error) {
	now := q.now()
	rows, err := q.db.QueryContext(ctx,
		`SELECT id FROM queue_messages WHERE queue_name = ? AND visible_at <= ? ORDER BY created_at LIMIT ?`,
		q.name, now.UnixMilli(), max,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "messaging", "receive", "Could not read queue", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hiddenUntil := now.Add(q.visibility).UnixMilli()
	deliveries := make([]Delivery, 0, len(ids))
	for _, id := range ids {
		receipt := uuid.NewString()
		var d Delivery
		// A concurrent consumer may win the row; the visible_at guard makes
		// the loser see no rows.
		err := q.db.QueryRowContext(ctx,
			`UPDATE queue_messages SET receipt = ?, receive_count = receive_count + 1, visible_at = ?
			 WHERE id = ? AND visible_at <= ?
			 RETURNING id, receipt, body, receive_count`,
			receipt, hiddenUntil, id, now.UnixMilli(),
		).Scan(&d.ID, &d.Receipt, &d.Body, &d.ReceiveCount)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return deliveries, services.Wrap(services.ErrTransient, "messaging", "receive", "Could not claim message", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// Delete removes the message currently held under receipt. A stale receipt
// from an expired visibility window deletes nothing.
func (q *Local) Delete(ctx context.Context, receipt string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE queue_name = ? AND receipt = ?`, q.name, receipt)
	if err != nil {
		return services.Wrap(services.ErrTransient, "messaging", "delete", "Could not delete message", err)
	}
	return nil
}

// Depth counts messages in the queue, visible or not.
func (q *Local) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_messages WHERE queue_name = ?`, q.name).Scan(&n)
	return n, err
}
