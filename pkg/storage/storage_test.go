package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ejc3/workflow/internal/apierr"
	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Run{}, &Step{}, &Event{}, &Hook{}, &StreamChunk{}))
	return New(db, id.NewGenerator(), dialect.SQLite)
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	run, err := s.Runs.Create(ctx, CreateRunInput{
		DeploymentID: "d1",
		WorkflowName: "w",
		Input:        []byte(`[{"x":1}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, RunPending, run.Status)

	got, err := s.Runs.Get(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DeploymentID)
	assert.Nil(t, got.StartedAt)

	running := RunRunning
	updated, err := s.Runs.Update(ctx, run.RunID, UpdateRunInput{Status: &running})
	require.NoError(t, err)
	require.NotNil(t, updated.StartedAt)
	startedAt := *updated.StartedAt

	completed := RunCompleted
	done, err := s.Runs.Update(ctx, run.RunID, UpdateRunInput{
		Status: &completed,
		Output: []byte(`[{"y":2}]`),
	})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, startedAt, *done.StartedAt, "startedAt must not change on later transitions")
	assert.JSONEq(t, `[{"y":2}]`, string(done.Output))
}

func TestRunGet_NotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Runs.Get(context.Background(), "wrun_missing")
	assertNotFound(t, err)
}

func TestRunPauseResume(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	run, err := s.Runs.Create(ctx, CreateRunInput{DeploymentID: "d1", WorkflowName: "w", Input: []byte(`[]`)})
	require.NoError(t, err)

	running := RunRunning
	_, err = s.Runs.Update(ctx, run.RunID, UpdateRunInput{Status: &running})
	require.NoError(t, err)

	paused, err := s.Runs.Pause(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunPaused, paused.Status)

	resumed, err := s.Runs.Resume(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, resumed.Status)

	_, err = s.Runs.Resume(ctx, run.RunID)
	assertNotFound(t, err)
}

func TestRunsList_Pagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	const total = 25
	for i := 0; i < total; i++ {
		_, err := s.Runs.Create(ctx, CreateRunInput{DeploymentID: "d", WorkflowName: "w", Input: []byte(`[]`)})
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := s.Runs.List(ctx, ListRunsParams{Page: Page{Limit: 10, Cursor: cursor}})
		require.NoError(t, err)
		pages++
		for _, r := range page.Runs {
			assert.False(t, seen[r.RunID], "run seen twice")
			seen[r.RunID] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.Runs[len(page.Runs)-1].RunID
		require.Less(t, pages, 10, "pagination did not terminate")
	}
	assert.Equal(t, total, len(seen))
	assert.Equal(t, 3, pages)
}

func TestStepsCreate_IdempotentByStepID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	run, err := s.Runs.Create(ctx, CreateRunInput{DeploymentID: "d", WorkflowName: "w", Input: []byte(`[]`)})
	require.NoError(t, err)

	first, err := s.Steps.Create(ctx, "wstp_fixed", CreateStepInput{RunID: run.RunID, StepName: "a"})
	require.NoError(t, err)

	second, err := s.Steps.Create(ctx, "wstp_fixed", CreateStepInput{RunID: run.RunID, StepName: "a"})
	require.NoError(t, err)
	assert.Equal(t, first.StepID, second.StepID)
}

func TestHooksCreateGetDispose(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	run, err := s.Runs.Create(ctx, CreateRunInput{DeploymentID: "d", WorkflowName: "w", Input: []byte(`[]`)})
	require.NoError(t, err)

	hook, err := s.Hooks.Create(ctx, CreateHookInput{
		RunID: run.RunID, Token: "tok-1", OwnerID: "o", ProjectID: "p", Environment: "prod",
		Metadata: []byte(`{}`),
	})
	require.NoError(t, err)

	got, err := s.Hooks.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, hook.HookID, got.HookID)

	disposed, err := s.Hooks.Dispose(ctx, hook.HookID)
	require.NoError(t, err)
	assert.Equal(t, hook.HookID, disposed.HookID)

	_, err = s.Hooks.GetByToken(ctx, "tok-1")
	assertNotFound(t, err)
}

func TestEventsListByRun_Ordering(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	run, err := s.Runs.Create(ctx, CreateRunInput{DeploymentID: "d", WorkflowName: "w", Input: []byte(`[]`)})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Events.Create(ctx, CreateEventInput{RunID: run.RunID, EventType: "t", EventData: []byte(`{}`)})
		require.NoError(t, err)
	}

	events, err := s.Events.ListByRun(ctx, run.RunID, Page{Limit: 10}, SortAscending)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].EventID, events[i].EventID)
	}
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.KindNotFound))
}
