// Package mysql provides a GORM DBProvider implementation for MySQL databases.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
)

const dbType = "mysql"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN for MySQL connections.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// NewProvider creates the MySQL DBProvider.
func NewProvider(cfg *config.Config) *gormadapter.BaseProvider {
	return gormadapter.NewBaseProvider(cfg, dbType)
}
