package queue

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// isDuplicateIdempotencyKeyErr reports whether err is the unique-constraint
// violation on jobs.idempotency_key, across all three back-ends' raw
// driver errors (this package talks to *sql.DB directly, not through
// GORM, so it cannot rely on gorm.ErrDuplicatedKey translation).
func isDuplicateIdempotencyKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := err.Error()
	// pgx reports "duplicate key value violates unique constraint"; the
	// mattn/go-sqlite3 driver reports "UNIQUE constraint failed".
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
