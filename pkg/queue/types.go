// Package queue implements spec.md §4.3: a reliable, at-least-once, leased
// job queue. MySQL/SQLite poll a shared "jobs" table; Postgres layers a
// pgx LISTEN/NOTIFY fast path on top of the same table and algorithm so
// latency drops without changing the externally observable contract
// (SPEC_FULL.md's resolution of spec.md §9's open question (b)).
package queue

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ejc3/workflow/internal/apierr"
)

// Status enumerates a job's lifecycle (spec.md §3).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one row of the internal "jobs" table.
type Job struct {
	ID             string
	QueueName      string
	Payload        []byte
	Status         Status
	Attempts       int
	MaxAttempts    int
	LockedUntil    *time.Time
	ScheduledFor   time.Time
	IdempotencyKey *string
	Error          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MessageData is the JSON envelope stored in Job.Payload (spec.md §3).
type MessageData struct {
	ID             string          `json:"id"`
	Data           json.RawMessage `json:"data"`
	Attempt        int             `json:"attempt"`
	MessageID      string          `json:"messageId"`
	IdempotencyKey *string         `json:"idempotencyKey,omitempty"`
}

// External queue-name prefixes callers use (spec.md §6).
const (
	PrefixWorkflow = "__wkf_workflow_"
	PrefixStep     = "__wkf_step_"
)

// ParseQueueName parses a caller-facing queue name into the stable
// internal job-queue name (jobPrefix+"flows" or jobPrefix+"steps") and the
// opaque queue ID suffix, per spec.md §4.3.
func ParseQueueName(name, jobPrefix string) (jobQueueName, queueID string, err error) {
	switch {
	case strings.HasPrefix(name, PrefixWorkflow):
		return jobPrefix + "flows", strings.TrimPrefix(name, PrefixWorkflow), nil
	case strings.HasPrefix(name, PrefixStep):
		return jobPrefix + "steps", strings.TrimPrefix(name, PrefixStep), nil
	default:
		return "", "", apierr.Validation("queue name must start with " + PrefixWorkflow + " or " + PrefixStep)
	}
}

// originalPrefix reverses ParseQueueName's mapping so the worker can
// reconstruct the caller-facing "inner" queue name from a job row, per
// spec.md §4.3 ("The dispatched inner queue name reconstructs as
// ${prefix}${messageData.id}").
func originalPrefix(jobQueueName, jobPrefix string) string {
	if strings.HasSuffix(jobQueueName, "flows") {
		return PrefixWorkflow
	}
	return PrefixStep
}

// EnqueueOptions are the optional settings for queue().
type EnqueueOptions struct {
	IdempotencyKey string
}

// EnqueueResult is returned by Enqueue.
type EnqueueResult struct {
	MessageID string
}
