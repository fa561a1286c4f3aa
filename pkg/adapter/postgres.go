package adapter

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ejc3/workflow/pkg/storage/dialect"
)

type postgresAdapter struct {
	dsn    string
	logger *zap.Logger
	db     *gorm.DB
	sqlDB  *sql.DB
}

func newPostgresAdapter(dsn string, logger *zap.Logger) Adapter {
	return &postgresAdapter{dsn: dsn, logger: logger}
}

func (a *postgresAdapter) Connect(ctx context.Context) error {
	db, err := gorm.Open(postgres.Open(a.dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	// One connection pool per process, as spec.md §4.1 requires.
	sqlDB.SetMaxOpenConns(25)

	for _, stmt := range splitStatements(schemaPostgres) {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	a.db = db
	a.sqlDB = sqlDB
	a.logger.Info("postgres adapter connected")
	return nil
}

func (a *postgresAdapter) IsHealthy(ctx context.Context) bool {
	if a.sqlDB == nil {
		return false
	}
	row := a.sqlDB.QueryRowContext(ctx, "SELECT 1")
	var one int
	return row.Scan(&one) == nil
}

func (a *postgresAdapter) Disconnect() error {
	if a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

func (a *postgresAdapter) DB() *gorm.DB               { return a.db }
func (a *postgresAdapter) SQLDB() *sql.DB             { return a.sqlDB }
func (a *postgresAdapter) Backend() dialect.Backend   { return dialect.Postgres }
func (a *postgresAdapter) NotifyDSN() string          { return a.dsn }
