package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

const jobsSchema = `
CREATE TABLE jobs (
	id TEXT PRIMARY KEY,
	queue_name TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	locked_until DATETIME,
	scheduled_for DATETIME NOT NULL,
	idempotency_key TEXT,
	error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX idx_jobs_idempotency_key ON jobs (idempotency_key);
`

func newTestQueue(t *testing.T, executor Executor) *pollingQueue {
	t.Helper()
	return newTestQueueWithSteps(t, executor, nil)
}

func newTestQueueWithSteps(t *testing.T, executor Executor, steps StepAttemptRecorder) *pollingQueue {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{jobsSchema} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	cfg := DefaultConfig("workflow_", 2)
	cfg.PollInterval = 20 * time.Millisecond
	cfg.LeaseDuration = 300 * time.Millisecond
	return newPollingQueue(db, dialect.For(dialect.SQLite), id.NewGenerator(), executor, steps, cfg, zap.NewNop())
}

// fakeStepAttemptRecorder is an in-memory StepAttemptRecorder double,
// standing in for pkg/storage's StepStore the way ExecutorFunc stands in
// for the real HTTP executor.
type fakeStepAttemptRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeStepAttemptRecorder() *fakeStepAttemptRecorder {
	return &fakeStepAttemptRecorder{counts: make(map[string]int)}
}

func (f *fakeStepAttemptRecorder) IncrementAttempt(ctx context.Context, stepID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[stepID]++
	return nil
}

func (f *fakeStepAttemptRecorder) count(stepID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[stepID]
}

func TestEnqueue_Idempotent(t *testing.T) {
	q := newTestQueue(t, ExecutorFunc(func(ctx context.Context, queueName string, data json.RawMessage) error { return nil }))
	ctx := context.Background()

	r1, err := q.Enqueue(ctx, "__wkf_workflow_abc", map[string]any{"x": 1}, EnqueueOptions{IdempotencyKey: "K"})
	require.NoError(t, err)

	r2, err := q.Enqueue(ctx, "__wkf_workflow_abc", map[string]any{"x": 1}, EnqueueOptions{IdempotencyKey: "K"})
	require.NoError(t, err)

	assert.Equal(t, r1.MessageID, r2.MessageID)

	var count int
	require.NoError(t, q.db.QueryRowContext(ctx, "SELECT count(*) FROM jobs WHERE idempotency_key = ?", "K").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnqueue_InvalidQueueName(t *testing.T) {
	q := newTestQueue(t, ExecutorFunc(func(ctx context.Context, queueName string, data json.RawMessage) error { return nil }))
	_, err := q.Enqueue(context.Background(), "not-a-valid-prefix", "x", EnqueueOptions{})
	require.Error(t, err)
}

func TestRetryLadder_SucceedsOnThirdAttempt(t *testing.T) {
	var calls int32
	executor := ExecutorFunc(func(ctx context.Context, queueName string, data json.RawMessage) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return assertErr
		}
		return nil
	})
	q := newTestQueue(t, executor)
	q.cfg.PollInterval = 5 * time.Millisecond
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "__wkf_workflow_abc", "m", EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, q.Start(ctx))
	defer q.Stop(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		// force scheduled_for into the past between retries so the test
		// doesn't wait out the real backoff.
		_, _ = q.db.ExecContext(ctx, "UPDATE jobs SET scheduled_for = ? WHERE status = 'pending'", time.Now().UTC().Add(-time.Second))
		var status string
		row := q.db.QueryRowContext(ctx, "SELECT status FROM jobs LIMIT 1")
		if err := row.Scan(&status); err == nil && status == "completed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	var status string
	var attempts int
	require.NoError(t, q.db.QueryRowContext(ctx, "SELECT status, attempts FROM jobs LIMIT 1").Scan(&status, &attempts))
	assert.Equal(t, "completed", status)
	assert.Equal(t, 3, attempts)
}

func TestLeaseExpiry_Restealable(t *testing.T) {
	q := newTestQueue(t, ExecutorFunc(func(ctx context.Context, queueName string, data json.RawMessage) error { return nil }))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "__wkf_workflow_abc", "m", EnqueueOptions{})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Second)
	_, err = q.db.ExecContext(ctx, "UPDATE jobs SET status = 'processing', locked_until = ?, attempts = 1", past)
	require.NoError(t, err)

	require.NoError(t, q.Start(ctx))
	defer q.Stop(ctx)

	deadline := time.Now().Add(2 * time.Second)
	var status string
	var attempts int
	for time.Now().Before(deadline) {
		err := q.db.QueryRowContext(ctx, "SELECT status, attempts FROM jobs LIMIT 1").Scan(&status, &attempts)
		require.NoError(t, err)
		if status == "completed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "completed", status)
	assert.Equal(t, 2, attempts)
}

func TestRetry_RecordsStepAttemptCount(t *testing.T) {
	var calls int32
	executor := ExecutorFunc(func(ctx context.Context, queueName string, data json.RawMessage) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return assertErr
		}
		return nil
	})
	steps := newFakeStepAttemptRecorder()
	q := newTestQueueWithSteps(t, executor, steps)
	q.cfg.PollInterval = 5 * time.Millisecond
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "__wkf_step_wstp_fixed", "m", EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, q.Start(ctx))
	defer q.Stop(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, _ = q.db.ExecContext(ctx, "UPDATE jobs SET scheduled_for = ? WHERE status = 'pending'", time.Now().UTC().Add(-time.Second))
		var status string
		row := q.db.QueryRowContext(ctx, "SELECT status FROM jobs LIMIT 1")
		if err := row.Scan(&status); err == nil && status == "completed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	var status string
	require.NoError(t, q.db.QueryRowContext(ctx, "SELECT status FROM jobs LIMIT 1").Scan(&status))
	assert.Equal(t, "completed", status)
	assert.Equal(t, 2, steps.count("wstp_fixed"), "one IncrementAttempt per retry, not per final success")
}

func TestRetry_WorkflowQueueNeverRecordsStepAttempt(t *testing.T) {
	var calls int32
	executor := ExecutorFunc(func(ctx context.Context, queueName string, data json.RawMessage) error {
		if atomic.AddInt32(&calls, 1) < 2 {
			return assertErr
		}
		return nil
	})
	steps := newFakeStepAttemptRecorder()
	q := newTestQueueWithSteps(t, executor, steps)
	q.cfg.PollInterval = 5 * time.Millisecond
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "__wkf_workflow_wrun_fixed", "m", EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, q.Start(ctx))
	defer q.Stop(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, _ = q.db.ExecContext(ctx, "UPDATE jobs SET scheduled_for = ? WHERE status = 'pending'", time.Now().UTC().Add(-time.Second))
		var status string
		row := q.db.QueryRowContext(ctx, "SELECT status FROM jobs LIMIT 1")
		if err := row.Scan(&status); err == nil && status == "completed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, 0, steps.count("wrun_fixed"), "workflow-queue retries must never touch step attempt counts")
}

var assertErr = errFixed{}

type errFixed struct{}

func (errFixed) Error() string { return "handler failed" }
