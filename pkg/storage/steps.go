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

// StepStore implements spec.md §4.2's step operations.
type StepStore struct {
	db      *gorm.DB
	gen     *id.Generator
	backend dialect.Backend
}

// CreateStepInput carries the fields a caller supplies to steps.create.
type CreateStepInput struct {
	RunID    string
	StepName string
	Input    datatypes.JSON
	Attempt  int
}

// Create is idempotent by stepId: a caller-supplied StepID conflict is
// swallowed via on-conflict-do-nothing (MySQL: INSERT IGNORE semantics via
// duplicate-key catch), and the row is then always read back by stepId;
// 409 is only returned when the row is genuinely missing after the
// attempt (spec.md §4.2).
func (s *StepStore) Create(ctx context.Context, stepID string, in CreateStepInput) (*Step, error) {
	if stepID == "" {
		stepID = s.gen.New(id.PrefixStep)
	}
	now := time.Now().UTC()
	attempt := in.Attempt
	if attempt < 1 {
		attempt = 1
	}
	step := &Step{
		StepID:    stepID,
		RunID:     in.RunID,
		StepName:  in.StepName,
		Status:    StepPending,
		Input:     in.Input,
		Attempt:   attempt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Clauses(onConflictDoNothing()).Create(step).Error
	if err != nil && !isDuplicateKeyErr(err) {
		return nil, apierr.Transport(err)
	}
	// Either the insert succeeded, or it was silently skipped by
	// ON CONFLICT DO NOTHING / swallowed as a duplicate key: read back the
	// row that must now exist.
	existing, getErr := s.Get(ctx, stepID)
	if getErr != nil {
		return nil, apierr.Conflict("step", stepID)
	}
	return existing, nil
}

// Get returns the step or apierr.NotFound.
func (s *StepStore) Get(ctx context.Context, stepID string) (*Step, error) {
	var step Step
	err := s.db.WithContext(ctx).Where("step_id = ?", stepID).First(&step).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierr.NotFound("step", stepID)
	}
	if err != nil {
		return nil, apierr.Transport(err)
	}
	return &step, nil
}

// UpdateStepInput carries the patchable step fields.
type UpdateStepInput struct {
	Status           *StepStatus
	Output           datatypes.JSON
	Error            *string
	ErrorCode        *string
	IncrementAttempt bool
}

// Update follows the same startedAt/completedAt rules as runs.Update:
// completed or failed sets completedAt on first transition.
func (s *StepStore) Update(ctx context.Context, stepID string, patch UpdateStepInput) (*Step, error) {
	var result Step
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var step Step
		if err := tx.Clauses(lockingClauses(s.backend)...).Where("step_id = ?", stepID).First(&step).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apierr.NotFound("step", stepID)
			}
			return apierr.Transport(err)
		}

		now := time.Now().UTC()
		if patch.Status != nil {
			if *patch.Status == StepRunning && step.StartedAt == nil {
				step.StartedAt = &now
			}
			if patch.Status.Terminal() && step.CompletedAt == nil {
				step.CompletedAt = &now
			}
			step.Status = *patch.Status
		}
		if patch.Output != nil {
			step.Output = patch.Output
		}
		if patch.Error != nil {
			step.Error = patch.Error
		}
		if patch.ErrorCode != nil {
			step.ErrorCode = patch.ErrorCode
		}
		if patch.IncrementAttempt {
			step.AttemptCount++
		}
		step.UpdatedAt = now

		if err := tx.Save(&step).Error; err != nil {
			return apierr.Transport(err)
		}
		result = step
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// IncrementAttempt bumps AttemptCount by one, satisfying the
// queue.StepAttemptRecorder interface the queue worker calls into on each
// retry of a job tied to this step (SPEC_FULL.md's "Step retry count").
func (s *StepStore) IncrementAttempt(ctx context.Context, stepID string) error {
	_, err := s.Update(ctx, stepID, UpdateStepInput{IncrementAttempt: true})
	return err
}

// ListByRun returns steps for a run ordered by ascending stepId (creation
// order), the natural companion to events.list's ordering.
func (s *StepStore) ListByRun(ctx context.Context, runID string, page Page) ([]Step, error) {
	limit := normalizeLimit(page.Limit)
	q := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("step_id ASC").Limit(limit)
	if page.Cursor != "" {
		q = q.Where("step_id > ?", page.Cursor)
	}
	var steps []Step
	if err := q.Find(&steps).Error; err != nil {
		return nil, apierr.Transport(err)
	}
	return steps, nil
}
