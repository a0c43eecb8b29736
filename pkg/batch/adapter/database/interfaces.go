// Package database defines the connection abstractions used by the attempt ledger.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/config"
)

// DBExecutor defines the read and write operations the ledger needs from a database.
type DBExecutor interface {
	// ExecuteUpsert inserts model, or updates updateColumns when a row with the same conflictColumns exists.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteQuery loads the rows matching query into target, sorted by orderBy when not empty.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string) error
}

// DBConnection represents one named database connection.
type DBConnection interface {
	DBExecutor

	// Name returns the connection name (the key under adapter.database).
	Name() string
	// Type returns the database type.
	Type() string
	// Close releases the underlying connection pool.
	Close() error
	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves a healthy connection by name.
type DBConnectionResolver interface {
	// ResolveDBConnection returns the named connection, re-establishing it if it no longer answers.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider opens and caches the connections of one database type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
	// ForceReconnect closes and re-opens the connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx value group collecting every DBProvider.
const DBProviderGroup = "db_providers"
