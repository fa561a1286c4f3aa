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

// EventStore implements spec.md §4.2's append-only event log.
type EventStore struct {
	db      *gorm.DB
	gen     *id.Generator
	backend dialect.Backend
}

// CreateEventInput carries the fields a caller supplies to events.create.
type CreateEventInput struct {
	RunID         string
	EventType     string
	CorrelationID *string
	EventData     datatypes.JSON
}

// Create appends an immutable event row, returning it with its assigned
// createdAt.
func (s *EventStore) Create(ctx context.Context, in CreateEventInput) (*Event, error) {
	event := &Event{
		EventID:       s.gen.New(id.PrefixEvent),
		RunID:         in.RunID,
		EventType:     in.EventType,
		CorrelationID: in.CorrelationID,
		EventData:     in.EventData,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, translateCreateErr(err, "event", event.EventID)
	}
	return event, nil
}

// ListByRun lists a run's events, ascending by default per spec.md §4.2.
func (s *EventStore) ListByRun(ctx context.Context, runID string, page Page, order SortOrder) ([]Event, error) {
	return s.list(ctx, "run_id = ?", runID, page, order)
}

// ListByCorrelationID lists events sharing a correlationId.
func (s *EventStore) ListByCorrelationID(ctx context.Context, correlationID string, page Page, order SortOrder) ([]Event, error) {
	return s.list(ctx, "correlation_id = ?", correlationID, page, order)
}

func (s *EventStore) list(ctx context.Context, where string, arg string, page Page, order SortOrder) ([]Event, error) {
	limit := normalizeLimit(page.Limit)
	dir := "ASC"
	cursorOp := ">"
	if order == SortDescending {
		dir = "DESC"
		cursorOp = "<"
	}
	q := s.db.WithContext(ctx).Where(where, arg).Order("event_id " + dir).Limit(limit)
	if page.Cursor != "" {
		q = q.Where("event_id "+cursorOp+" ?", page.Cursor)
	}
	var events []Event
	if err := q.Find(&events).Error; err != nil {
		return nil, apierr.Transport(err)
	}
	return events, nil
}
