// Package migration applies the attempt ledger schema with golang-migrate.
// Migrations are embedded per dialect and run against the connection named by ledger.db_ref.
package migration

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database"
	config "github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

const moduleName = "migration"

// Runner migrates the ledger database.
type Runner struct {
	cfg         *config.Config
	resolver    database.DBConnectionResolver
	migrationFS fs.FS
	newMigrator func(database.DBConnection) Migrator
}

// RunnerParams holds the dependencies of the Runner injected via Fx.
type RunnerParams struct {
	fx.In
	Config      *config.Config
	Resolver    database.DBConnectionResolver
	MigrationFS fs.FS `name:"migrationsFS"`
}

// NewRunner creates a Runner.
func NewRunner(p RunnerParams) *Runner {
	return &Runner{
		cfg:         p.Config,
		resolver:    p.Resolver,
		migrationFS: p.MigrationFS,
		newMigrator: NewMigrator,
	}
}

// Up applies every pending ledger migration.
func (r *Runner) Up(ctx context.Context) error {
	return r.run(ctx, func(m Migrator, path string) error {
		return m.Up(ctx, r.migrationFS, path, MigrationsTable)
	})
}

// Down drops the ledger schema.
func (r *Runner) Down(ctx context.Context) error {
	return r.run(ctx, func(m Migrator, path string) error {
		return m.Down(ctx, r.migrationFS, path, MigrationsTable)
	})
}

func (r *Runner) run(ctx context.Context, apply func(Migrator, string) error) error {
	ref := r.cfg.Wrfcycle.Ledger.DBRef
	if ref == "" {
		return exception.ConfigErrorf(moduleName, "ledger.db_ref must name an adapter.database connection")
	}
	conn, err := r.resolver.ResolveDBConnection(ctx, ref)
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to resolve DB connection '%s'", ref, err)
	}
	path := conn.Type()
	if _, err := fs.Stat(r.migrationFS, path); err != nil {
		return exception.ConfigErrorf(moduleName, "no migrations for database type '%s'", path, err)
	}
	if err := apply(r.newMigrator(conn), path); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "ledger migration on '%s' failed", ref, err)
	}
	return nil
}
