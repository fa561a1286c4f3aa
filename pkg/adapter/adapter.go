// Package adapter implements spec.md §4.1: a pooled connection to the
// configured back-end, a typed query runner, and a liveness probe. Adapted
// from the reference server's single package-level *gorm.DB into a typed
// collaborator that Storage/Queue/Streamer hold as a dependency.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// Adapter is the contract every back-end implementation satisfies.
type Adapter interface {
	// Connect opens or validates the pool and bootstraps the fixed schema.
	Connect(ctx context.Context) error
	// IsHealthy issues a trivial liveness probe; never panics.
	IsHealthy(ctx context.Context) bool
	// Disconnect drains the pool and closes handles.
	Disconnect() error

	// DB returns the GORM handle used by the storage layer's CRUD paths.
	DB() *gorm.DB
	// SQLDB returns the underlying *sql.DB for the queue/streamer's
	// hand-written dialect-specific SQL.
	SQLDB() *sql.DB
	// Backend identifies which dialect this adapter speaks.
	Backend() dialect.Backend
	// NotifyDSN returns a connection string suitable for opening a
	// dedicated LISTEN/NOTIFY connection. Only meaningful for Postgres;
	// other back-ends return "".
	NotifyDSN() string
}

// DetectBackend implements spec.md §4.5's connection-string sniffing:
// postgres://, postgresql:// => postgres; mysql:// => mysql; anything else
// (including ":memory:" and file paths) => sqlite.
func DetectBackend(connectionString string) dialect.Backend {
	switch {
	case strings.HasPrefix(connectionString, "postgres://"), strings.HasPrefix(connectionString, "postgresql://"):
		return dialect.Postgres
	case strings.HasPrefix(connectionString, "mysql://"):
		return dialect.MySQL
	default:
		return dialect.SQLite
	}
}

// New constructs the Adapter implementation for backendType (if non-empty)
// or the auto-detected backend for connectionString.
func New(backendType, connectionString string, logger *zap.Logger) (Adapter, error) {
	backend := dialect.Backend(backendType)
	if backend == "" {
		backend = DetectBackend(connectionString)
	}
	switch backend {
	case dialect.Postgres:
		return newPostgresAdapter(connectionString, logger), nil
	case dialect.MySQL:
		return newMySQLAdapter(connectionString, logger), nil
	case dialect.SQLite:
		return newSQLiteAdapter(connectionString, logger), nil
	default:
		return nil, fmt.Errorf("adapter: unknown backend %q", backend)
	}
}
