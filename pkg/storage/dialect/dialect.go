// Package dialect abstracts the per-back-end SQL differences the queue and
// streamer's hand-written statements need: placeholder style, RETURNING
// support, on-conflict handling, and how "now" is expressed. Adapted from
// the driver abstraction in the reference workflow-engine's storage package,
// generalized to the three back-ends this module supports.
package dialect

import "fmt"

// Backend names one of the three supported SQL back-ends.
type Backend string

const (
	Postgres Backend = "postgres"
	MySQL    Backend = "mysql"
	SQLite   Backend = "sqlite"
)

// Dialect abstracts backend-specific SQL fragments.
type Dialect interface {
	Backend() Backend
	// Placeholder returns the bind-parameter marker for the nth (1-based)
	// positional argument: "$n" for Postgres, "?" for MySQL/SQLite.
	Placeholder(n int) string
	// CurrentTimeExpr returns a SQL expression evaluating to "now".
	CurrentTimeExpr() string
	// SupportsReturning reports whether this backend can return the
	// affected row from INSERT/UPDATE/DELETE in one statement.
	SupportsReturning() bool
	// ReturningClause renders "RETURNING col, col" or "" when unsupported.
	ReturningClause(columns ...string) string
	// OnConflictDoNothing renders "ON CONFLICT (...) DO NOTHING" or "" when
	// the backend has no equivalent (MySQL: use INSERT IGNORE instead).
	OnConflictDoNothing(conflictColumns ...string) string
	// SelectForUpdate renders a row-locking clause, or "" where the backend
	// relies on table/database-level locking (SQLite).
	SelectForUpdate() string
}

type postgresDialect struct{}

func (postgresDialect) Backend() Backend           { return Postgres }
func (postgresDialect) Placeholder(n int) string    { return fmt.Sprintf("$%d", n) }
func (postgresDialect) CurrentTimeExpr() string     { return "NOW()" }
func (postgresDialect) SupportsReturning() bool     { return true }
func (postgresDialect) SelectForUpdate() string     { return "FOR UPDATE" }

func (postgresDialect) ReturningClause(columns ...string) string {
	return renderReturning(columns)
}

func (postgresDialect) OnConflictDoNothing(conflictColumns ...string) string {
	return renderOnConflict(conflictColumns)
}

type mysqlDialect struct{}

func (mysqlDialect) Backend() Backend        { return MySQL }
func (mysqlDialect) Placeholder(n int) string { return "?" }
func (mysqlDialect) CurrentTimeExpr() string  { return "NOW()" }
func (mysqlDialect) SupportsReturning() bool  { return false }
func (mysqlDialect) ReturningClause(columns ...string) string       { return "" }
func (mysqlDialect) OnConflictDoNothing(conflictColumns ...string) string { return "" }
func (mysqlDialect) SelectForUpdate() string  { return "FOR UPDATE" }

type sqliteDialect struct{}

func (sqliteDialect) Backend() Backend        { return SQLite }
func (sqliteDialect) Placeholder(n int) string { return "?" }
func (sqliteDialect) CurrentTimeExpr() string  { return "datetime('now')" }
func (sqliteDialect) SupportsReturning() bool  { return true }

func (sqliteDialect) ReturningClause(columns ...string) string {
	return renderReturning(columns)
}

func (sqliteDialect) OnConflictDoNothing(conflictColumns ...string) string {
	return renderOnConflict(conflictColumns)
}

// SQLite has no row-level locking, so no clause is rendered; writers are
// serialized by the SQLite adapter's single pooled connection.
func (sqliteDialect) SelectForUpdate() string { return "" }

func renderReturning(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	out := "RETURNING "
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func renderOnConflict(conflictColumns []string) string {
	if len(conflictColumns) == 0 {
		return "ON CONFLICT DO NOTHING"
	}
	cols := ""
	for i, c := range conflictColumns {
		if i > 0 {
			cols += ", "
		}
		cols += c
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", cols)
}

// For creates a Dialect for the given backend name.
func For(backend Backend) Dialect {
	switch backend {
	case Postgres:
		return postgresDialect{}
	case MySQL:
		return mysqlDialect{}
	default:
		return sqliteDialect{}
	}
}
