package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"kestrel-sir/core/utils"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// ApplyMigrations brings the schema up to date using the embedded goose
// migration set.
func ApplyMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	goose.SetBaseFS(embeddedMigrations)
	goose.SetLogger(goose.NopLogger())
	dialect := "sqlite3"
	if db.Driver() == "postgres" {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("store: set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.SQL(), "migrations"); err != nil {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	if logger != nil {
		logger.Infof("store: migrations applied")
	}
	return nil
}
