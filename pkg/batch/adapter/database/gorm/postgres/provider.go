// Package postgres provides a GORM DBProvider implementation for PostgreSQL databases.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
)

const dbType = "postgres"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN expected by gorm.io/driver/postgres.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
}

// NewProvider creates the PostgreSQL DBProvider.
func NewProvider(cfg *config.Config) *gormadapter.BaseProvider {
	return gormadapter.NewBaseProvider(cfg, dbType)
}
