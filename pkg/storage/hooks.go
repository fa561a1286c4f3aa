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

// HookStore implements spec.md §4.2's hook registration/lookup/dispose.
type HookStore struct {
	db      *gorm.DB
	gen     *id.Generator
	backend dialect.Backend
}

// CreateHookInput carries the fields a caller supplies to hooks.create.
// Per SPEC_FULL.md's resolution of spec.md §9's open question (c), the
// owner/project/environment tuple is a required argument here, already
// resolved by the caller from its AuthProvider — Storage never calls Auth.
type CreateHookInput struct {
	RunID       string
	Token       string
	OwnerID     string
	ProjectID   string
	Environment string
	Metadata    datatypes.JSON
}

// Create inserts the hook and returns 409 (apierr.Conflict) when the
// insert hits a duplicate key.
func (s *HookStore) Create(ctx context.Context, in CreateHookInput) (*Hook, error) {
	hook := &Hook{
		HookID:      s.gen.New(id.PrefixHook),
		RunID:       in.RunID,
		Token:       in.Token,
		OwnerID:     in.OwnerID,
		ProjectID:   in.ProjectID,
		Environment: in.Environment,
		Metadata:    in.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(hook).Error; err != nil {
		return nil, translateCreateErr(err, "hook", hook.HookID)
	}
	return hook, nil
}

// GetByToken returns the hook with the given token or apierr.NotFound.
func (s *HookStore) GetByToken(ctx context.Context, token string) (*Hook, error) {
	var hook Hook
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&hook).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apierr.NotFound("hook", token)
	}
	if err != nil {
		return nil, apierr.Transport(err)
	}
	return &hook, nil
}

// Dispose removes the hook and returns the prior row, 404 if missing.
func (s *HookStore) Dispose(ctx context.Context, hookID string) (*Hook, error) {
	var result Hook
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hook Hook
		if err := tx.Clauses(lockingClauses(s.backend)...).Where("hook_id = ?", hookID).First(&hook).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apierr.NotFound("hook", hookID)
			}
			return apierr.Transport(err)
		}
		if err := tx.Delete(&Hook{}, "hook_id = ?", hookID).Error; err != nil {
			return apierr.Transport(err)
		}
		result = hook
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
