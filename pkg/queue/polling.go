package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ejc3/workflow/internal/apierr"
	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// queryer is the subset of *sql.DB the queue needs, narrow enough that
// tests can pass any *sql.DB (in-memory sqlite or a real network DB)
// without the queue package depending on the adapter package.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// jobQueueNames are the two fixed internal queue names spec.md §4.3
// derives from the external prefixes.
func jobQueueNames(jobPrefix string) []string {
	return []string{jobPrefix + "flows", jobPrefix + "steps"}
}

// pollingQueue implements spec.md §4.3's MySQL/SQLite table-polling
// worker algorithm, steps 1-6.
type pollingQueue struct {
	db       queryer
	dia      dialect.Dialect
	gen      *id.Generator
	executor Executor
	steps    StepAttemptRecorder
	cfg      Config
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newPollingQueue(db queryer, dia dialect.Dialect, gen *id.Generator, executor Executor, steps StepAttemptRecorder, cfg Config, logger *zap.Logger) *pollingQueue {
	return &pollingQueue{db: db, dia: dia, gen: gen, executor: executor, steps: steps, cfg: cfg, logger: logger.Named("queue")}
}

func (q *pollingQueue) Enqueue(ctx context.Context, name string, message any, opts EnqueueOptions) (*EnqueueResult, error) {
	jobQueueName, queueID, err := ParseQueueName(name, q.cfg.JobPrefix)
	if err != nil {
		return nil, err
	}

	if opts.IdempotencyKey != "" {
		if existing, err := q.FindByIdempotencyKey(ctx, opts.IdempotencyKey); err == nil && existing != nil {
			return &EnqueueResult{MessageID: existing.ID}, nil
		}
	}

	dataBytes, err := json.Marshal(message)
	if err != nil {
		return nil, apierr.Validation("message is not JSON-serializable: " + err.Error())
	}

	messageID := q.gen.New(id.PrefixJob)
	md := MessageData{ID: queueID, Data: dataBytes, Attempt: 1, MessageID: messageID}
	var idempotencyKey *string
	if opts.IdempotencyKey != "" {
		key := opts.IdempotencyKey
		md.IdempotencyKey = &key
		idempotencyKey = &key
	}
	payload, err := json.Marshal(md)
	if err != nil {
		return nil, apierr.Transport(err)
	}

	now := time.Now().UTC()
	insert := fmt.Sprintf(
		`INSERT INTO jobs (id, queue_name, payload, status, attempts, max_attempts, scheduled_for, idempotency_key, created_at, updated_at)
		 VALUES (%s, %s, %s, %s, 0, %s, %s, %s, %s, %s)`,
		q.dia.Placeholder(1), q.dia.Placeholder(2), q.dia.Placeholder(3), q.dia.Placeholder(4),
		q.dia.Placeholder(5), q.dia.Placeholder(6), q.dia.Placeholder(7), q.dia.Placeholder(8), q.dia.Placeholder(9),
	)
	_, err = q.db.ExecContext(ctx, insert, messageID, jobQueueName, string(payload), string(StatusPending),
		q.cfg.MaxAttempts, now, idempotencyKey, now, now)
	if err != nil {
		if isDuplicateIdempotencyKeyErr(err) {
			// Lost the race to another concurrent enqueue with the same
			// key: read back the row it inserted (spec.md §4.3's
			// idempotency race note).
			if existing, ferr := q.FindByIdempotencyKey(ctx, opts.IdempotencyKey); ferr == nil && existing != nil {
				return &EnqueueResult{MessageID: existing.ID}, nil
			}
		}
		return nil, apierr.Transport(err)
	}
	return &EnqueueResult{MessageID: messageID}, nil
}

func (q *pollingQueue) FindByIdempotencyKey(ctx context.Context, key string) (*Job, error) {
	row := q.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, queue_name, payload, status, attempts, max_attempts, locked_until, scheduled_for, idempotency_key, error, created_at, updated_at
		             FROM jobs WHERE idempotency_key = %s`, q.dia.Placeholder(1)), key)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("job", key)
	}
	if err != nil {
		return nil, apierr.Transport(err)
	}
	return job, nil
}

func (q *pollingQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true

	for _, queueName := range jobQueueNames(q.cfg.JobPrefix) {
		for i := 0; i < q.cfg.Concurrency; i++ {
			q.wg.Add(1)
			go q.workerLoop(runCtx, queueName)
		}
	}
	return nil
}

func (q *pollingQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *pollingQueue) workerLoop(ctx context.Context, queueName string) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.pollOnce(ctx, queueName)
		}
	}
}

// pollOnce implements spec.md §4.3 steps 1-6 for one queue-name.
func (q *pollingQueue) pollOnce(ctx context.Context, queueName string) {
	candidates, err := q.fetchCandidates(ctx, queueName)
	if err != nil {
		q.logger.Warn("poll failed", zap.String("queue", queueName), zap.Error(err))
		return
	}
	for _, jobID := range candidates {
		job, ok := q.lease(ctx, jobID)
		if !ok {
			continue // another worker won the race
		}
		q.handle(ctx, job)
	}
}

func (q *pollingQueue) fetchCandidates(ctx context.Context, queueName string) ([]string, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(
		`SELECT id FROM jobs WHERE queue_name = %s AND status IN (%s, %s) AND scheduled_for <= %s AND (locked_until IS NULL OR locked_until <= %s) ORDER BY id ASC LIMIT %d`,
		q.dia.Placeholder(1), q.dia.Placeholder(2), q.dia.Placeholder(3), q.dia.Placeholder(4), q.dia.Placeholder(5), q.cfg.BatchSize,
	)
	rows, err := q.db.QueryContext(ctx, query, queueName, string(StatusPending), string(StatusProcessing), now, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// lease attempts step 2's conditional UPDATE, on a pending job or on a
// processing job whose lease has expired (step 6). It returns the leased
// job (with Attempts already incremented) and true iff this call won the
// race.
func (q *pollingQueue) lease(ctx context.Context, jobID string) (*Job, bool) {
	now := time.Now().UTC()
	lockedUntil := now.Add(q.cfg.LeaseDuration)
	update := fmt.Sprintf(
		`UPDATE jobs SET status = %s, locked_until = %s, attempts = attempts + 1, updated_at = %s
		 WHERE id = %s AND status IN (%s, %s) AND (locked_until IS NULL OR locked_until <= %s)`,
		q.dia.Placeholder(1), q.dia.Placeholder(2), q.dia.Placeholder(3),
		q.dia.Placeholder(4), q.dia.Placeholder(5), q.dia.Placeholder(6), q.dia.Placeholder(7),
	)
	res, err := q.db.ExecContext(ctx, update, string(StatusProcessing), lockedUntil, now, jobID, string(StatusPending), string(StatusProcessing), now)
	if err != nil {
		q.logger.Warn("lease failed", zap.String("job", jobID), zap.Error(err))
		return nil, false
	}
	affected, _ := res.RowsAffected()
	if affected != 1 {
		return nil, false
	}

	row := q.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, queue_name, payload, status, attempts, max_attempts, locked_until, scheduled_for, idempotency_key, error, created_at, updated_at
		             FROM jobs WHERE id = %s`, q.dia.Placeholder(1)), jobID)
	job, err := scanJob(row)
	if err != nil {
		q.logger.Warn("post-lease read failed", zap.String("job", jobID), zap.Error(err))
		return nil, false
	}
	return job, true
}

func (q *pollingQueue) handle(ctx context.Context, job *Job) {
	// Detach from Stop's cancellation so an in-flight handler runs to
	// completion; the lease timeout below still bounds the dispatch.
	ctx = context.WithoutCancel(ctx)
	var md MessageData
	if err := json.Unmarshal(job.Payload, &md); err != nil {
		q.fail(ctx, job, md, fmt.Errorf("decode payload: %w", err))
		return
	}

	innerName := originalPrefix(job.QueueName, q.cfg.JobPrefix) + md.ID
	leaseCtx, cancel := context.WithTimeout(ctx, q.cfg.LeaseDuration)
	defer cancel()

	if err := q.executor.Dispatch(leaseCtx, innerName, md.Data); err != nil {
		q.fail(ctx, job, md, err)
		return
	}
	q.complete(ctx, job)
}

func (q *pollingQueue) complete(ctx context.Context, job *Job) {
	update := fmt.Sprintf(`UPDATE jobs SET status = %s, locked_until = NULL, updated_at = %s WHERE id = %s`,
		q.dia.Placeholder(1), q.dia.Placeholder(2), q.dia.Placeholder(3))
	if _, err := q.db.ExecContext(ctx, update, string(StatusCompleted), time.Now().UTC(), job.ID); err != nil {
		q.logger.Warn("mark completed failed", zap.String("job", job.ID), zap.Error(err))
	}
}

// fail implements step 5's retry-or-exhaust branch with the exponential
// backoff spec.md §4.3 and §8 specify: min(1000*2^attempts, 60000) ms.
func (q *pollingQueue) fail(ctx context.Context, job *Job, md MessageData, cause error) {
	errMsg := cause.Error()
	now := time.Now().UTC()

	if job.Attempts < job.MaxAttempts {
		backoff := backoffFor(job.Attempts)
		scheduledFor := now.Add(backoff)
		update := fmt.Sprintf(
			`UPDATE jobs SET status = %s, locked_until = NULL, scheduled_for = %s, error = %s, updated_at = %s WHERE id = %s`,
			q.dia.Placeholder(1), q.dia.Placeholder(2), q.dia.Placeholder(3), q.dia.Placeholder(4), q.dia.Placeholder(5),
		)
		if _, err := q.db.ExecContext(ctx, update, string(StatusPending), scheduledFor, errMsg, now, job.ID); err != nil {
			q.logger.Warn("mark retry failed", zap.String("job", job.ID), zap.Error(err))
		}
		q.recordStepRetry(ctx, job, md)
		return
	}

	update := fmt.Sprintf(`UPDATE jobs SET status = %s, locked_until = NULL, error = %s, updated_at = %s WHERE id = %s`,
		q.dia.Placeholder(1), q.dia.Placeholder(2), q.dia.Placeholder(3), q.dia.Placeholder(4))
	if _, err := q.db.ExecContext(ctx, update, string(StatusFailed), errMsg, now, job.ID); err != nil {
		q.logger.Warn("mark failed failed", zap.String("job", job.ID), zap.Error(err))
	}
}

// recordStepRetry bumps the step's AttemptCount when the job being retried
// is tied to a step (queue name ends in the step job-queue suffix),
// per SPEC_FULL.md's "Step retry count" domain-model addition. The job's
// queueId (md.ID) is the stepId by construction: callers queue step work
// as "__wkf_step_<stepId>", and ParseQueueName preserves that ID verbatim
// as MessageData.ID.
func (q *pollingQueue) recordStepRetry(ctx context.Context, job *Job, md MessageData) {
	if q.steps == nil {
		return
	}
	if !strings.HasSuffix(job.QueueName, "steps") {
		return
	}
	if err := q.steps.IncrementAttempt(ctx, md.ID); err != nil {
		q.logger.Warn("recording step retry failed", zap.String("step", md.ID), zap.Error(err))
	}
}

// backoffFor returns spec.md's min(1000*2^attempts, 60000) ms, where
// attempts is the job's attempt count including the attempt that just
// failed (lease increments it before dispatch): 2s after the first
// failure, 4s after the second.
func backoffFor(attempts int) time.Duration {
	ms := int64(1000)
	for i := 0; i < attempts; i++ {
		ms *= 2
		if ms >= 60000 {
			return 60000 * time.Millisecond
		}
	}
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var status, payload string
	var lockedUntil sql.NullTime
	var idempotencyKey, errText sql.NullString
	err := row.Scan(&j.ID, &j.QueueName, &payload, &status, &j.Attempts, &j.MaxAttempts, &lockedUntil, &j.ScheduledFor, &idempotencyKey, &errText, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Payload = []byte(payload)
	j.Status = Status(status)
	if lockedUntil.Valid {
		j.LockedUntil = &lockedUntil.Time
	}
	if idempotencyKey.Valid {
		j.IdempotencyKey = &idempotencyKey.String
	}
	if errText.Valid {
		j.Error = &errText.String
	}
	return &j, nil
}
