package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// Queue is the contract both the polling and Postgres-NOTIFY-accelerated
// implementations satisfy (spec.md §4.3).
type Queue interface {
	// Enqueue writes a pending job row and returns its messageId.
	Enqueue(ctx context.Context, name string, message any, opts EnqueueOptions) (*EnqueueResult, error)
	// FindByIdempotencyKey is SPEC_FULL.md's supplemented read operation,
	// letting a caller poll for a previously-submitted idempotent job
	// without retrying the insert.
	FindByIdempotencyKey(ctx context.Context, key string) (*Job, error)
	// Start begins the worker loop(s); safe to call once per process.
	Start(ctx context.Context) error
	// Stop stops accepting new polls; in-flight handlers run to completion.
	Stop(ctx context.Context) error
}

// Config configures a Queue, mirroring spec.md §6's env-var table.
type Config struct {
	JobPrefix     string
	Concurrency   int
	PollInterval  time.Duration
	LeaseDuration time.Duration
	BatchSize     int
	MaxAttempts   int
}

// DefaultConfig returns spec.md §4.3's literal constants.
func DefaultConfig(jobPrefix string, concurrency int) Config {
	return Config{
		JobPrefix:     jobPrefix,
		Concurrency:   concurrency,
		PollInterval:  200 * time.Millisecond,
		LeaseDuration: 30 * time.Second,
		BatchSize:     10,
		MaxAttempts:   3,
	}
}

// New builds the Queue implementation for backend: Postgres gets the
// NOTIFY-accelerated variant; MySQL/SQLite get the plain poller. steps may
// be nil, in which case step retries are simply not recorded (matching
// the Executor collaborator's own "accept nil, degrade gracefully" shape).
func New(sqlDB queryer, backend dialect.Backend, notifyDSN string, gen *id.Generator, executor Executor, steps StepAttemptRecorder, cfg Config, logger *zap.Logger) Queue {
	pq := newPollingQueue(sqlDB, dialect.For(backend), gen, executor, steps, cfg, logger)
	if backend == dialect.Postgres && notifyDSN != "" {
		return newPostgresQueue(pq, notifyDSN, logger)
	}
	return pq
}
