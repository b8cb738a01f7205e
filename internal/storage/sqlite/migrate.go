package sqlite

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrateUp applies all pending migrations against db, bootstrapping
// the outcomes table on first run.
func migrateUp(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. Exposed
// for the `blockctl migrate down` command.
func MigrateDown(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Down(db, "migrations"); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// MigrationStatus is one row of `blockctl migrate status`.
type MigrationStatus struct {
	Version   int64
	Source    string
	IsApplied bool
}

// Status reports the applied/pending state of every embedded migration,
// for the `blockctl migrate status` command.
func Status(db *sql.DB) ([]MigrationStatus, error) {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	migrations, err := goose.CollectMigrations("migrations", 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collect migrations: %w", err)
	}

	var out []MigrationStatus
	for _, m := range migrations {
		applied, err := goose.GetDBVersion(db)
		if err != nil {
			return nil, fmt.Errorf("get db version: %w", err)
		}
		out = append(out, MigrationStatus{
			Version:   m.Version,
			Source:    m.Source,
			IsApplied: m.Version <= applied,
		})
	}
	return out, nil
}
