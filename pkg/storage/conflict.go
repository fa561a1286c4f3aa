package storage

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/ejc3/workflow/internal/apierr"
)

// isDuplicateKeyErr reports whether err is a primary-key/unique-constraint
// violation, covering GORM's own translated error, the raw MySQL driver
// error code 1062, and the raw Postgres/SQLite driver messages (the
// adapters open GORM without error translation), per spec.md §4.2's
// RETURNING-compatibility section.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// translateCreateErr maps a Create() error to apierr.Conflict when it is a
// duplicate-key violation, and wraps anything else as apierr.Transport.
func translateCreateErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if isDuplicateKeyErr(err) {
		return apierr.Conflict(entity, id)
	}
	return apierr.Transport(err)
}
