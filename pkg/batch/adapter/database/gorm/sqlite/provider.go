// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
)

const dbType = "sqlite"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite DSN, which is the database file path.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return c.Database
}

// NewProvider creates the SQLite DBProvider.
func NewProvider(cfg *config.Config) *gormadapter.BaseProvider {
	return gormadapter.NewBaseProvider(cfg, dbType)
}
