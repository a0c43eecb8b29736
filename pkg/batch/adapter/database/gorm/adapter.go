package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// mysqlNoSuchTable is the server error number for "Table doesn't exist".
const mysqlNoSuchTable = 1146

// NewGormLogger creates a gorm.Logger instance based on the configured log level.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch config.LogLevel(strings.ToUpper(level)) {
	case config.LogLevelError, config.LogLevelFatal:
		gormLevel = gorm_logger.Error
	case config.LogLevelWarn, config.LogLevelInfo:
		gormLevel = gorm_logger.Warn
	case config.LogLevelDebug:
		gormLevel = gorm_logger.Info
	default:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(
		NewGormWriter(),
		gorm_logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter redirects GORM log output to the application logger.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Write implements io.Writer.
func (w *GormWriter) Write(p []byte) (n int, err error) {
	w.emit(string(p))
	return len(p), nil
}

// Printf implements gorm_logger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	w.emit(fmt.Sprintf(format, v...))
}

// emit logs SQL traces at DEBUG and everything else (slow queries, connection notices) at INFO.
func (w *GormWriter) emit(msg string) {
	msg = strings.TrimSpace(msg)
	if isSQLTrace(msg) {
		logger.Debugf("[GORM] %s", msg)
		return
	}
	logger.Infof("[GORM] %s", msg)
}

func isSQLTrace(msg string) bool {
	if !strings.Contains(msg, "[") || !strings.Contains(msg, "]") {
		return false
	}
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}

// GormDBAdapter implements database.DBConnection on top of a *gorm.DB.
type GormDBAdapter struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   dbconfig.DatabaseConfig
	name  string
}

// NewGormDBAdapter wraps db as the connection called name.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB for '%s': %w", name, err)
	}
	return &GormDBAdapter{db: db, sqlDB: sqlDB, cfg: cfg, name: name}, nil
}

// Name implements database.DBConnection.
func (a *GormDBAdapter) Name() string { return a.name }

// Type implements database.DBConnection.
func (a *GormDBAdapter) Type() string { return a.cfg.Type }

// Config implements database.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig { return a.cfg }

// GetSQLDB implements database.DBConnection.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, errors.New("connection has no underlying *sql.DB")
	}
	return a.sqlDB, nil
}

// GetGormDB returns the wrapped *gorm.DB.
func (a *GormDBAdapter) GetGormDB() *gorm.DB { return a.db }

// Close implements database.DBConnection.
func (a *GormDBAdapter) Close() error {
	if a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

// ExecuteUpsert implements database.DBExecutor.
func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	cols := make([]clause.Column, 0, len(conflictColumns))
	for _, c := range conflictColumns {
		cols = append(cols, clause.Column{Name: c})
	}
	db := a.db.WithContext(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   cols,
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(model)
	return res.RowsAffected, res.Error
}

// ExecuteQuery implements database.DBExecutor.
func (a *GormDBAdapter) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string) error {
	db := a.db.WithContext(ctx)
	if len(query) > 0 {
		db = db.Where(query)
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	return db.Find(target).Error
}

// IsTableNotExistError implements database.DBConnection.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return IsTableNotExistError(err)
}

// IsTableNotExistError reports whether err says that the queried table is missing, for any supported dialect.
func IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoSuchTable
	}
	msg := err.Error()
	return (strings.Contains(msg, "relation \"") && strings.Contains(msg, "\" does not exist")) || // PostgreSQL
		(strings.Contains(msg, "Error 1146") && strings.Contains(msg, "doesn't exist")) || // MySQL, unwrapped
		strings.Contains(msg, "no such table:") // SQLite
}

var _ database.DBConnection = (*GormDBAdapter)(nil)
