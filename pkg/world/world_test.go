package world

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ejc3/workflow/pkg/queue"
	"github.com/ejc3/workflow/pkg/storage"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(Config{
		DatabaseType:     "sqlite",
		ConnectionString: ":memory:",
		QueueConcurrency: 1,
		Executor:         queue.ExecutorFunc(func(context.Context, string, json.RawMessage) error { return nil }),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })
	return w
}

func TestStart_WiresLiveDBHandles(t *testing.T) {
	w := newTestWorld(t)

	require.NotNil(t, w.Storage)
	require.NotNil(t, w.Queue)
	require.NotNil(t, w.Streamer)

	ctx := context.Background()
	run, err := w.Storage.Runs.Create(ctx, storage.CreateRunInput{
		DeploymentID: "d1",
		WorkflowName: "wf",
		Input:        []byte(`[]`),
	})
	require.NoError(t, err)
	assert.Equal(t, storage.RunPending, run.Status)

	got, err := w.Storage.Runs.Get(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
}

func TestStart_IsIdempotent(t *testing.T) {
	w := newTestWorld(t)
	require.NoError(t, w.Start(context.Background()))
}

func TestHealth_ReportsHealthyAfterStart(t *testing.T) {
	w := newTestWorld(t)
	identity := Identity{Environment: "prod", OwnerID: "o1", ProjectID: "p1"}
	status := w.Health(context.Background(), identity)
	assert.True(t, status.Healthy)
	assert.True(t, status.DB)
	assert.True(t, status.Storage)
	assert.Equal(t, identity, status.Identity)
}

func TestHealth_UnhealthyAfterStop(t *testing.T) {
	w := newTestWorld(t)
	require.NoError(t, w.Stop(context.Background()))
	status := w.Health(context.Background(), Identity{})
	assert.False(t, status.Healthy)
	assert.False(t, status.DB)
}

func TestStaticAuthProvider_ResolvesFixedIdentity(t *testing.T) {
	p := StaticAuthProvider{Identity: Identity{Environment: "dev"}}
	id, err := p.Resolve(context.Background(), "any-token")
	require.NoError(t, err)
	assert.Equal(t, "dev", id.Environment)
}
