package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) { g.l.Errorf(format, v...) }
func (g gooseLogger) Printf(format string, v ...interface{}) { g.l.Infof(format, v...) }

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{l: logger.Named("migrate").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
