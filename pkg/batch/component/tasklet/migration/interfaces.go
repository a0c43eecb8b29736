package migration

import (
	"context"
	"io/fs"
)

// MigrationsTable tracks the applied ledger schema version.
const MigrationsTable = "wrfcycle_migrations"

// Migrator applies the migrations found below path in migrationFS.
type Migrator interface {
	// Up applies all pending migrations.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
}
