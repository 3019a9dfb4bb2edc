// Package bus provides the durable message queue that connects front-ends,
// monitors, and the orchestrator.
package bus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrEmpty is returned by Pop when no message is available within the
// requested timeout.
var ErrEmpty = errors.New("bus: no message")

// DefaultPollInterval is the sleep between pop attempts while waiting for a
// message to appear.
const DefaultPollInterval = 100 * time.Millisecond

// Queue is a channel-scoped FIFO backed by a single SQLite file. Producers
// push from any goroutine; each channel is expected to have a single reader.
// Entries are removed on pop and never re-delivered (at-most-once).
type Queue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithPollInterval overrides the pop polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// Open opens (or creates) the queue database at path.
func Open(path string, opts ...Option) (*Queue, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply queue schema: %w", err)
	}

	q := &Queue{db: db, pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'new',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_queue_channel_status ON queue(channel, status);
`

// Close closes the backing database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Push appends a payload to a channel. Only infrastructure failures (disk,
// lock) are returned; there is no validation of the payload.
func (q *Queue) Push(channel, payload string) error {
	_, err := q.db.Exec(
		`INSERT INTO queue (channel, payload, status) VALUES (?, ?, 'new')`,
		channel, payload,
	)
	if err != nil {
		return fmt.Errorf("queue push %s: %w", channel, err)
	}
	return nil
}

// PushJSON marshals v and pushes the result.
func (q *Queue) PushJSON(channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("queue marshal %s: %w", channel, err)
	}
	return q.Push(channel, string(data))
}

// Publish is an alias for Push. There is no broadcast fan-out: a published
// entry is still consumed by exactly one reader. Callers must not assume
// multiple subscribers ever observe the same entry.
func (q *Queue) Publish(channel, payload string) error {
	return q.Push(channel, payload)
}

// Pop removes and returns the oldest pending payload for a channel.
//
// With timeout == 0 it returns immediately with ErrEmpty when the channel is
// empty. This deliberately diverges from a conventional blocking pop: zero
// means "try once", not "wait forever". With timeout > 0 it polls until a
// message appears or the timeout elapses, then returns ErrEmpty.
func (q *Queue) Pop(ctx context.Context, channel string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		payload, err := q.tryPop(ctx, channel)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, ErrEmpty) && !isBusy(err) {
			return "", err
		}

		if timeout == 0 {
			return "", ErrEmpty
		}
		if time.Now().After(deadline) {
			return "", ErrEmpty
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// tryPop performs one atomic select-and-delete of the oldest entry. An
// immediate transaction takes the write lock before the read so two
// concurrent poppers on the same channel never observe the same row.
func (q *Queue) tryPop(ctx context.Context, channel string) (payload string, err error) {
	conn, err := q.db.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("queue pop conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return "", fmt.Errorf("queue pop begin: %w", err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(ctx, `ROLLBACK`)
		}
	}()

	var id int64
	err = conn.QueryRowContext(ctx,
		`SELECT id, payload FROM queue WHERE channel = ? AND status = 'new' ORDER BY id ASC LIMIT 1`,
		channel,
	).Scan(&id, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("queue pop select: %w", err)
	}

	if _, err = conn.ExecContext(ctx, `DELETE FROM queue WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("queue pop delete: %w", err)
	}
	if _, err = conn.ExecContext(ctx, `COMMIT`); err != nil {
		return "", fmt.Errorf("queue pop commit: %w", err)
	}
	return payload, nil
}

// Len reports the number of pending entries on a channel.
func (q *Queue) Len(channel string) (int, error) {
	var n int
	err := q.db.QueryRow(
		`SELECT COUNT(*) FROM queue WHERE channel = ? AND status = 'new'`, channel,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue len %s: %w", channel, err)
	}
	return n, nil
}

// isBusy reports whether err is a transient SQLITE_BUSY/LOCKED condition that
// the pop polling loop should absorb.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
