package storage

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ejc3/workflow/internal/apierr"
	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// RunStore implements spec.md §4.2's run operations and state machine:
// pending -> running -> (paused <-> running) -> completed|failed|cancelled.
type RunStore struct {
	db      *gorm.DB
	gen     *id.Generator
	backend dialect.Backend
}

// CreateRunInput carries the fields a caller supplies to runs.create.
type CreateRunInput struct {
	DeploymentID     string
	WorkflowName     string
	Input            datatypes.JSON
	ExecutionContext datatypes.JSON
}

// Create generates a runId and inserts with status=pending. Per
// SPEC_FULL.md's RETURNING-compatibility strategy, the full row is built in
// Go before insert, so no back-end-specific read-back is required: what we
// insert is exactly what we return.
func (s *RunStore) Create(ctx context.Context, in CreateRunInput) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		RunID:            s.gen.New(id.PrefixRun),
		DeploymentID:     in.DeploymentID,
		WorkflowName:     in.WorkflowName,
		Status:           RunPending,
		Input:            in.Input,
		ExecutionContext: in.ExecutionContext,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, translateCreateErr(err, "run", run.RunID)
	}
	return run, nil
}

// Get returns the run or apierr.NotFound.
func (s *RunStore) Get(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierr.NotFound("run", runID)
	}
	if err != nil {
		return nil, apierr.Transport(err)
	}
	return &run, nil
}

// UpdateRunInput carries the patchable run fields.
type UpdateRunInput struct {
	Status           *RunStatus
	Output           datatypes.JSON
	ExecutionContext datatypes.JSON
	Error            *string
	ErrorCode        *string
}

// Update reads the current row first to decide whether this transition
// sets startedAt (first entry into running) or completedAt (first entry
// into a terminal state), then patches inside a transaction so the
// read-modify-write is atomic across all three back-ends without relying
// on native RETURNING (SPEC_FULL.md's resolution of spec.md §9's flagged
// correctness gap).
func (s *RunStore) Update(ctx context.Context, runID string, patch UpdateRunInput) (*Run, error) {
	var result Run
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run Run
		if err := tx.Clauses(lockingClauses(s.backend)...).Where("run_id = ?", runID).First(&run).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apierr.NotFound("run", runID)
			}
			return apierr.Transport(err)
		}

		now := time.Now().UTC()
		if patch.Status != nil {
			if *patch.Status == RunRunning && run.StartedAt == nil {
				run.StartedAt = &now
			}
			if patch.Status.Terminal() && run.CompletedAt == nil {
				run.CompletedAt = &now
			}
			run.Status = *patch.Status
		}
		if patch.Output != nil {
			run.Output = patch.Output
		}
		if patch.ExecutionContext != nil {
			run.ExecutionContext = patch.ExecutionContext
		}
		if patch.Error != nil {
			run.Error = patch.Error
		}
		if patch.ErrorCode != nil {
			run.ErrorCode = patch.ErrorCode
		}
		run.UpdatedAt = now

		if err := tx.Save(&run).Error; err != nil {
			return apierr.Transport(err)
		}
		result = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel sets status=cancelled, completedAt=now. Accepted from any
// non-terminal state.
func (s *RunStore) Cancel(ctx context.Context, runID string) (*Run, error) {
	status := RunCancelled
	return s.Update(ctx, runID, UpdateRunInput{Status: &status})
}

// Pause sets status=paused.
func (s *RunStore) Pause(ctx context.Context, runID string) (*Run, error) {
	status := RunPaused
	return s.Update(ctx, runID, UpdateRunInput{Status: &status})
}

// Resume only succeeds when the current status is paused.
func (s *RunStore) Resume(ctx context.Context, runID string) (*Run, error) {
	var result Run
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run Run
		if err := tx.Clauses(lockingClauses(s.backend)...).Where("run_id = ?", runID).First(&run).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apierr.NotFound("run", runID)
			}
			return apierr.Transport(err)
		}
		if run.Status != RunPaused {
			return apierr.NotFound("paused run", runID)
		}
		run.Status = RunRunning
		run.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&run).Error; err != nil {
			return apierr.Transport(err)
		}
		result = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRunsParams filters and paginates runs.list.
type ListRunsParams struct {
	WorkflowName string
	Status       RunStatus
	Page         Page
}

// ListRunsResult is a page of runs plus whether more follow; the next
// cursor is the RunID of the page's last run.
type ListRunsResult struct {
	Runs    []Run
	HasMore bool
}

// List paginates by descending runId (implicit timestamp order, since
// ULIDs are time-prefixed). Cursor is the last-seen runId.
func (s *RunStore) List(ctx context.Context, params ListRunsParams) (*ListRunsResult, error) {
	limit := normalizeLimit(params.Page.Limit)
	q := s.db.WithContext(ctx).Model(&Run{}).Order("run_id DESC").Limit(limit + 1)
	if params.WorkflowName != "" {
		q = q.Where("workflow_name = ?", params.WorkflowName)
	}
	if params.Status != "" {
		q = q.Where("status = ?", params.Status)
	}
	if params.Page.Cursor != "" {
		q = q.Where("run_id < ?", params.Page.Cursor)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, apierr.Transport(err)
	}
	hasMore := len(runs) > limit
	if hasMore {
		runs = runs[:limit]
	}
	return &ListRunsResult{Runs: runs, HasMore: hasMore}, nil
}
