package storage

import (
	"gorm.io/gorm/clause"

	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// lockingClauses returns a row-locking clause for backends that support
// it (Postgres, MySQL). SQLite has no row-level locking; callers instead
// rely on gorm's sqlite driver serializing writers via a single pooled
// connection (adapter.sqliteAdapter caps the pool at one).
func lockingClauses(backend dialect.Backend) []clause.Expression {
	if backend == dialect.SQLite {
		return nil
	}
	return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
}

// onConflictDoNothing renders GORM's cross-backend on-conflict-do-nothing
// clause, which GORM itself lowers to "INSERT IGNORE" on MySQL and
// "ON CONFLICT DO NOTHING" on Postgres/SQLite.
func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}
