package adapter

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ejc3/workflow/pkg/storage/dialect"
)

type sqliteAdapter struct {
	path   string
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
}

func newSQLiteAdapter(path string, logger *zap.Logger) Adapter {
	return &sqliteAdapter{path: path, logger: logger}
}

func (a *sqliteAdapter) Connect(ctx context.Context) error {
	db, err := gorm.Open(gormsqlite.Open(a.path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	// SQLite is a single-file handle; one connection avoids "database is
	// locked" under WAL with concurrent writers from the same process.
	sqlDB.SetMaxOpenConns(1)

	if a.path != ":memory:" {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return err
		}
	}

	for _, stmt := range splitStatements(schemaSQLite) {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	a.db = db
	a.sqlDB = sqlDB
	a.logger.Info("sqlite adapter connected")
	return nil
}

func (a *sqliteAdapter) IsHealthy(ctx context.Context) bool {
	if a.sqlDB == nil {
		return false
	}
	row := a.sqlDB.QueryRowContext(ctx, "SELECT 1")
	var one int
	return row.Scan(&one) == nil
}

func (a *sqliteAdapter) Disconnect() error {
	if a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

func (a *sqliteAdapter) DB() *gorm.DB             { return a.db }
func (a *sqliteAdapter) SQLDB() *sql.DB           { return a.sqlDB }
func (a *sqliteAdapter) Backend() dialect.Backend { return dialect.SQLite }
func (a *sqliteAdapter) NotifyDSN() string        { return "" }
