// Package storage implements spec.md §4.2: CRUD with invariants over
// runs/steps/events/hooks, plus the stream-chunk rows the streamer package
// reads and writes. Modeled with GORM the way the reference server's
// dao package models its pipeline/execution tables, with JSON columns via
// gorm.io/datatypes so Run.input/output, Event.eventData and Hook.metadata
// round-trip as structured documents rather than opaque strings.
package storage

import (
	"time"

	"gorm.io/datatypes"
)

// RunStatus enumerates spec.md §4.2's run state machine.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// StepStatus enumerates the step attempt lifecycle.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Run is an execution of a named workflow (spec.md §3).
type Run struct {
	RunID            string         `gorm:"column:run_id;primaryKey"`
	DeploymentID     string         `gorm:"column:deployment_id"`
	WorkflowName     string         `gorm:"column:workflow_name"`
	Status           RunStatus      `gorm:"column:status"`
	Input            datatypes.JSON `gorm:"column:input"`
	Output           datatypes.JSON `gorm:"column:output"`
	ExecutionContext datatypes.JSON `gorm:"column:execution_context"`
	Error            *string        `gorm:"column:error"`
	ErrorCode        *string        `gorm:"column:error_code"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
	StartedAt        *time.Time     `gorm:"column:started_at"`
	CompletedAt      *time.Time     `gorm:"column:completed_at"`
}

func (Run) TableName() string { return "runs" }

// Step is one attempt of a named step inside a run (spec.md §3), enriched
// with AttemptCount per SPEC_FULL.md's domain-model additions.
type Step struct {
	StepID       string         `gorm:"column:step_id;primaryKey"`
	RunID        string         `gorm:"column:run_id"`
	StepName     string         `gorm:"column:step_name"`
	Status       StepStatus     `gorm:"column:status"`
	Input        datatypes.JSON `gorm:"column:input"`
	Output       datatypes.JSON `gorm:"column:output"`
	Error        *string        `gorm:"column:error"`
	ErrorCode    *string        `gorm:"column:error_code"`
	Attempt      int            `gorm:"column:attempt"`
	AttemptCount int            `gorm:"column:attempt_count"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
	StartedAt    *time.Time     `gorm:"column:started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at"`
}

func (Step) TableName() string { return "steps" }

// Event is an append-only log entry for replay (spec.md §3). Immutable
// after creation.
type Event struct {
	EventID       string         `gorm:"column:event_id;primaryKey"`
	RunID         string         `gorm:"column:run_id"`
	EventType     string         `gorm:"column:event_type"`
	CorrelationID *string        `gorm:"column:correlation_id"`
	EventData     datatypes.JSON `gorm:"column:event_data"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (Event) TableName() string { return "events" }

// Hook is an external callback registration addressed by an opaque token
// (spec.md §3).
type Hook struct {
	HookID      string         `gorm:"column:hook_id;primaryKey"`
	RunID       string         `gorm:"column:run_id"`
	Token       string         `gorm:"column:token"`
	OwnerID     string         `gorm:"column:owner_id"`
	ProjectID   string         `gorm:"column:project_id"`
	Environment string         `gorm:"column:environment"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (Hook) TableName() string { return "hooks" }

// StreamChunk is one segment of a byte stream (spec.md §3), enriched with
// ContentType per SPEC_FULL.md's domain-model additions.
type StreamChunk struct {
	StreamID    string    `gorm:"column:stream_id;primaryKey"`
	ChunkID     string    `gorm:"column:chunk_id;primaryKey"`
	ChunkData   []byte    `gorm:"column:chunk_data"`
	ContentType string    `gorm:"column:content_type"`
	EOF         bool      `gorm:"column:eof"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (StreamChunk) TableName() string { return "stream_chunks" }
