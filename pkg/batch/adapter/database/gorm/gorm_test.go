package gorm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/wrfcycle/pkg/batch/core/config"
)

type stubProvider struct {
	conn       database.DBConnection
	fresh      database.DBConnection
	reconnects int
}

func (p *stubProvider) GetConnection(string) (database.DBConnection, error) { return p.conn, nil }
func (p *stubProvider) CloseAll() error { return nil }
func (p *stubProvider) Type() string { return "mysql" }
func (p *stubProvider) ForceReconnect(string) (database.DBConnection, error) {
	p.reconnects++
	return p.fresh, nil
}

func newMockConnection(t *testing.T) (*GormDBAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: db, SkipInitializeWithVersion: true}),
		&gorm.Config{DisableAutomaticPing: true, Logger: NewGormLogger("SILENT")})
	require.NoError(t, err)

	conn, err := NewGormDBAdapter(gormDB, dbconfig.DatabaseConfig{Type: "mysql"}, "ledger")
	require.NoError(t, err)
	return conn, mock
}

func ledgerConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Wrfcycle.Adapter.Database["ledger"] = map[string]interface{}{"type": "mysql"}
	return cfg
}

func TestResolveDBConnection_HealthyConnection(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPing()

	provider := &stubProvider{conn: conn}
	resolver := NewGormDBConnectionResolver(GormDBConnectionResolverParams{
		DBProviders: []database.DBProvider{provider},
		Cfg:         ledgerConfig(),
	})

	got, err := resolver.ResolveDBConnection(context.Background(), "ledger")
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.Equal(t, 0, provider.reconnects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveDBConnection_ReconnectsAfterFailedPing(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectPing().WillReturnError(errors.New("server has gone away"))
	fresh, _ := newMockConnection(t)

	provider := &stubProvider{conn: conn, fresh: fresh}
	resolver := NewGormDBConnectionResolver(GormDBConnectionResolverParams{
		DBProviders: []database.DBProvider{provider},
		Cfg:         ledgerConfig(),
	})

	got, err := resolver.ResolveDBConnection(context.Background(), "ledger")
	require.NoError(t, err)
	assert.Same(t, fresh, got)
	assert.Equal(t, 1, provider.reconnects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveDBConnection_UnknownNameOrType(t *testing.T) {
	cfg := ledgerConfig()
	cfg.Wrfcycle.Adapter.Database["other"] = map[string]interface{}{"type": "oracle"}
	resolver := NewGormDBConnectionResolver(GormDBConnectionResolverParams{
		DBProviders: []database.DBProvider{&stubProvider{}},
		Cfg:         cfg,
	})

	_, err := resolver.ResolveDBConnection(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found under adapter.database")

	_, err = resolver.ResolveDBConnection(context.Background(), "other")
	assert.ErrorContains(t, err, "DBProvider for type 'oracle' not found")
}

func TestDecodeDatabaseConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Wrfcycle.Adapter.Database["ledger"] = map[string]interface{}{
		"type":     "postgres",
		"host":     "db.internal",
		"port":     "5432",
		"database": "wrf",
		"sslmode":  "require",
		"pool":     map[string]interface{}{"max_open_conns": 4, "conn_max_lifetime_minutes": 10},
	}

	got, err := DecodeDatabaseConfig(cfg, "ledger")
	require.NoError(t, err)
	assert.Equal(t, "postgres", got.Type)
	assert.Equal(t, 5432, got.Port)
	assert.Equal(t, "require", got.Sslmode)
	assert.Equal(t, 4, got.Pool.MaxOpenConns)
	assert.Equal(t, 10, got.Pool.ConnMaxLifetimeMinutes)
}

func TestIsTableNotExistError(t *testing.T) {
	assert.False(t, IsTableNotExistError(nil))
	assert.True(t, IsTableNotExistError(fmt.Errorf("query: %w", &mysqldriver.MySQLError{Number: 1146, Message: "Table 'wrf.attempt' doesn't exist"})))
	assert.False(t, IsTableNotExistError(&mysqldriver.MySQLError{Number: 1045, Message: "Access denied"}))
	assert.True(t, IsTableNotExistError(errors.New("no such table: wrfcycle_attempt")))
	assert.True(t, IsTableNotExistError(errors.New(`ERROR: relation "wrfcycle_attempt" does not exist (SQLSTATE 42P01)`)))
	assert.False(t, IsTableNotExistError(errors.New("connection refused")))
}

func TestGetDialectorFactory_Unregistered(t *testing.T) {
	_, err := GetDialectorFactory("oracle")
	assert.Error(t, err)
}
