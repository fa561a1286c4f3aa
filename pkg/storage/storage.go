package storage

import (
	"gorm.io/gorm"

	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// Storage aggregates the per-entity stores, matching the "one object per
// entity" shape spec.md §4.2 describes.
type Storage struct {
	Runs   *RunStore
	Steps  *StepStore
	Events *EventStore
	Hooks  *HookStore
}

// New builds a Storage backed by db, generating IDs with gen and rendering
// dialect-sensitive SQL fragments for backend.
func New(db *gorm.DB, gen *id.Generator, backend dialect.Backend) *Storage {
	return &Storage{
		Runs:   &RunStore{db: db, gen: gen, backend: backend},
		Steps:  &StepStore{db: db, gen: gen, backend: backend},
		Events: &EventStore{db: db, gen: gen, backend: backend},
		Hooks:  &HookStore{db: db, gen: gen, backend: backend},
	}
}
