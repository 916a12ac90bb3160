package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/webcomponents/catalog/pkg/async"
)

// Task is one unit of enqueued work: a target task route plus the
// parameters it needs, matching the shape of the original new_task
// helper (§4.4 point 3).
type Task struct {
	QueueName string            `json:"queue_name"`
	Path      string            `json:"path"`
	Params    map[string]string `json:"params,omitempty"`
}

// Queue enqueues child tasks. Two implementations exist: a transactional
// Postgres outbox for handlers that must not lose a child task if the
// parent commit rolls back, and a best-effort in-process queue for
// fire-and-forget enqueue from non-transactional handlers.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
}

// OutboxQueue persists tasks to a pending_tasks table inside the
// caller's transaction; a separate poller drains committed rows and
// dispatches them, so a child task is never observed before its parent
// row is.
type OutboxQueue struct {
	tx *sql.Tx
}

// NewOutboxQueue wraps tx; the caller is responsible for committing tx
// once both the entity write and the enqueue succeed.
func NewOutboxQueue(tx *sql.Tx) *OutboxQueue {
	return &OutboxQueue{tx: tx}
}

func (q *OutboxQueue) Enqueue(ctx context.Context, t Task) error {
	params, err := json.Marshal(t.Params)
	if err != nil {
		return fmt.Errorf("tasks: failed to marshal params: %w", err)
	}
	_, err = q.tx.ExecContext(ctx, `
		INSERT INTO pending_tasks (queue_name, path, params, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.QueueName, t.Path, params, time.Now())
	if err != nil {
		return fmt.Errorf("tasks: failed to enqueue outbox task: %w", err)
	}
	return nil
}

// OutboxPoller drains pending_tasks rows and passes them to its dispatch
// function, deleting each row only after a successful dispatch.
type OutboxPoller struct {
	db         *sql.DB
	dispatch   func(ctx context.Context, t Task) error
	pollPeriod time.Duration
}

// NewOutboxPoller builds a poller over db, calling dispatch for each
// drained row.
func NewOutboxPoller(db *sql.DB, pollPeriod time.Duration, dispatch func(ctx context.Context, t Task) error) *OutboxPoller {
	if pollPeriod <= 0 {
		pollPeriod = time.Second
	}
	return &OutboxPoller{db: db, dispatch: dispatch, pollPeriod: pollPeriod}
}

// Run drains the outbox on pollPeriod until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drainOnce(ctx)
		}
	}
}

func (p *OutboxPoller) drainOnce(ctx context.Context) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, queue_name, path, params FROM pending_tasks ORDER BY created_at LIMIT 100
	`)
	if err != nil {
		return
	}
	defer rows.Close()

	type row struct {
		id     int64
		t      Task
		params []byte
	}
	var drained []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.t.QueueName, &r.t.Path, &r.params); err != nil {
			continue
		}
		_ = json.Unmarshal(r.params, &r.t.Params)
		drained = append(drained, r)
	}
	rows.Close()

	for _, r := range drained {
		if err := p.dispatch(ctx, r.t); err != nil {
			continue
		}
		p.db.ExecContext(ctx, "DELETE FROM pending_tasks WHERE id = $1", r.id)
	}
}

// CountPending reports how many rows are waiting in the outbox for the
// named queue, used by the sweeper to refuse to start a bulk pass while
// the previous one hasn't drained (spec.md §4.9).
func CountPending(ctx context.Context, db *sql.DB, queueName string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_tasks WHERE queue_name = $1", queueName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("tasks: counting pending %s tasks: %w", queueName, err)
	}
	return n, nil
}

// InProcessQueue is the best-effort queue: it submits tasks to a bounded
// worker pool instead of persisting them, for handlers where losing an
// enqueue on crash is acceptable (§4.4 point 3's fire-and-forget case).
type InProcessQueue struct {
	pool     *async.WorkerPool
	dispatch func(ctx context.Context, t Task) error
}

// NewInProcessQueue builds a queue backed by pool, calling dispatch for
// every submitted task.
func NewInProcessQueue(pool *async.WorkerPool, dispatch func(ctx context.Context, t Task) error) *InProcessQueue {
	return &InProcessQueue{pool: pool, dispatch: dispatch}
}

func (q *InProcessQueue) Enqueue(ctx context.Context, t Task) error {
	return q.pool.Submit(func(ctx context.Context) error {
		return q.dispatch(ctx, t)
	})
}
