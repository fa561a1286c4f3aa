package streamer

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// New builds the Streamer implementation for backend: Postgres gets the
// NOTIFY-accelerated variant (started via the returned Streamer's
// optional Starter interface); MySQL/SQLite get the plain poller.
func New(sqlDB *sql.DB, backend dialect.Backend, notifyDSN string, gen *id.Generator, logger *zap.Logger) Streamer {
	ps := newPollingStreamer(sqlDB, dialect.For(backend), gen, logger)
	if backend == dialect.Postgres && notifyDSN != "" {
		return newPostgresStreamer(ps, notifyDSN, logger)
	}
	return ps
}

// Starter is implemented by Streamer variants that run a background
// listener loop worth starting eagerly (only the Postgres variant today).
// Callers that don't type-assert for it still work correctly; Start only
// improves delivery latency, never correctness (spec.md §9 design note).
type Starter interface {
	Start(ctx context.Context)
}
